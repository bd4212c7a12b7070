package service

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/runar/internal/dto"
	"github.com/noah-isme/runar/internal/models"
)

const exportTimeLayout = "2006-01-02T15:04:05.000Z"

//go:embed schemas/conversation_export.schema.json
var exportSchemaJSON string

var exportSchema = jsonschema.MustCompileString("https://runar.local/schemas/conversation_export.schema.json", exportSchemaJSON)

// ExportConversation builds the export document for a conversation. It returns nil when the
// conversation is unknown or empty.
func (s *ConversationStore) ExportConversation(conversationID string, isGroup bool) (*dto.ConversationExport, error) {
	messages, err := s.MessagesByConversation(conversationID, isGroup)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}

	export := &dto.ConversationExport{
		ConversationName: s.exportName(conversationID, isGroup),
		ConversationType: models.ConversationPrivate,
		ExportDate:       s.clock().UTC().Format(exportTimeLayout),
		MessageCount:     len(messages),
		Messages:         make([]dto.ExportMessage, 0, len(messages)),
	}
	if isGroup {
		export.ConversationType = models.ConversationGroup
	}
	for _, msg := range messages {
		export.Messages = append(export.Messages, dto.ExportMessage{
			Timestamp: time.UnixMilli(msg.Timestamp).UTC().Format(exportTimeLayout),
			Sender:    msg.SenderName,
			Content:   msg.MessageContent,
			Edited:    msg.Edited,
		})
	}

	if err := validateExport(export); err != nil {
		return nil, err
	}
	return export, nil
}

// MarshalExport renders an export document as indented JSON.
func MarshalExport(export *dto.ConversationExport) ([]byte, error) {
	return json.MarshalIndent(export, "", "  ")
}

func (s *ConversationStore) exportName(conversationID string, isGroup bool) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if isGroup {
		if group, ok := s.groupChats[conversationID]; ok && group.Name != "" {
			return group.Name
		}
		return unknownGroupName
	}
	if chat, ok := s.privateChats[conversationID]; ok {
		return s.privateDisplayNameLocked(chat, " and ")
	}
	return ""
}

func validateExport(export *dto.ConversationExport) error {
	raw, err := json.Marshal(export)
	if err != nil {
		return err
	}
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return err
	}
	if err := exportSchema.Validate(document); err != nil {
		return fmt.Errorf("export document invalid: %w", err)
	}
	return nil
}
