package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockReply is what MockProvider returns for one artifact kind.
type MockReply struct {
	Text  string
	Err   error
	Delay time.Duration
}

// MockProvider is a test double that answers by artifact kind. Prompts built
// by ArtifactGenerator carry a kind marker the mock keys on.
type MockProvider struct {
	mu      sync.Mutex
	Replies map[ArtifactKind]MockReply
	Calls   map[ArtifactKind]int
}

func NewMockProvider(replies map[ArtifactKind]MockReply) *MockProvider {
	return &MockProvider{Replies: replies, Calls: map[ArtifactKind]int{}}
}

func (m *MockProvider) Identity() (string, string) {
	return "mock", "mock-1"
}

func (m *MockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	kind := kindFromPrompt(prompt)

	m.mu.Lock()
	m.Calls[kind]++
	reply := m.Replies[kind]
	m.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if reply.Err != nil {
		return "", reply.Err
	}
	return reply.Text, nil
}

func (m *MockProvider) CallCount(kind ArtifactKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[kind]
}

func kindFromPrompt(prompt string) ArtifactKind {
	for _, k := range []ArtifactKind{ArtifactTeacherNote, ArtifactLearnerNote, ArtifactQuiz} {
		if strings.Contains(prompt, kindMarker(k)) {
			return k
		}
	}
	return ""
}
