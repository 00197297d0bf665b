package services

import (
	"context"
	"errors"
	"testing"

	"github.com/primaruang/realty-crm-be/internal/models"
)

func newChatService(repo *stubConvRepo, msgRepo *stubMsgRepo, b *recordingBroadcaster, s *recordingScheduler) *ChatService {
	return NewChatService(repo, msgRepo, nil, b, s)
}

func TestStartCreatesConversationAndSchedulesAnalysis(t *testing.T) {
	repo := newStubConvRepo()
	scheduler := &recordingScheduler{}
	service := newChatService(repo, newStubMsgRepo(), &recordingBroadcaster{}, scheduler)

	result, err := service.Start(context.Background(), StartChatInput{
		Name:    "Budi",
		Email:   "budi@example.com",
		Message: "Is the 2BR in Green Hills still available?",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if result.ChatToken == "" || result.ConversationID == "" {
		t.Fatalf("expected token and conversation id, got %+v", result)
	}

	conv, err := service.Resolve(context.Background(), result.ChatToken)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conv.ID.String() != result.ConversationID {
		t.Fatal("token resolves to wrong conversation")
	}

	if len(scheduler.scheduled) != 1 || scheduler.scheduled[0] != conv.ID {
		t.Fatal("expected first analysis scheduled at chat start")
	}
}

func TestStartRequiresNameAndMessage(t *testing.T) {
	service := newChatService(newStubConvRepo(), newStubMsgRepo(), &recordingBroadcaster{}, &recordingScheduler{})

	if _, err := service.Start(context.Background(), StartChatInput{Name: "Budi"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing message, got %v", err)
	}
	if _, err := service.Start(context.Background(), StartChatInput{Message: "hi"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing name, got %v", err)
	}
}

func TestResolveUnknownToken(t *testing.T) {
	service := newChatService(newStubConvRepo(), newStubMsgRepo(), &recordingBroadcaster{}, &recordingScheduler{})

	if _, err := service.Resolve(context.Background(), "not-a-token"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := service.Resolve(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
}

func TestSendMessageBroadcastsAndReschedules(t *testing.T) {
	token := "tok-1"
	conv := activeConversation(nil)
	conv.ChatToken = &token
	repo := newStubConvRepo(conv)
	msgRepo := newStubMsgRepo()
	msgRepo.names[conv.LeadID] = "Budi"
	broadcaster := &recordingBroadcaster{}
	scheduler := &recordingScheduler{}
	service := newChatService(repo, msgRepo, broadcaster, scheduler)

	msg, err := service.SendMessage(context.Background(), token, "When can I view it?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if msg.SenderType != models.SenderLead || msg.SenderName != "Budi" {
		t.Fatalf("unexpected sender: %s %s", msg.SenderType, msg.SenderName)
	}
	if len(broadcaster.events) != 1 || broadcaster.events[0] != "new_message" {
		t.Fatalf("expected new_message broadcast, got %v", broadcaster.events)
	}
	if len(scheduler.scheduled) != 1 || scheduler.scheduled[0] != conv.ID {
		t.Fatal("expected analysis rescheduled")
	}
}

func TestSendMessageToArchivedConversation(t *testing.T) {
	token := "tok-1"
	conv := activeConversation(nil)
	conv.ChatToken = &token
	conv.Status = models.StatusArchived
	msgRepo := newStubMsgRepo()
	service := newChatService(newStubConvRepo(conv), msgRepo, &recordingBroadcaster{}, &recordingScheduler{})

	_, err := service.SendMessage(context.Background(), token, "hello?")
	if !errors.Is(err, ErrArchived) {
		t.Fatalf("expected ErrArchived, got %v", err)
	}
	if len(msgRepo.inserted) != 0 {
		t.Fatal("expected nothing persisted")
	}
}
