package session

import (
	"sort"
	"strings"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/types"
)

// appendHistory adds one entry to the conversation history.
func (s *Session) appendHistory(msg types.Message) {
	s.mu.Lock()
	s.history = append(s.history, msg)
	s.mu.Unlock()
}

// History returns a copy of the conversation so far.
func (s *Session) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.history)
}

// Data returns a copy of the gathered-data bag.
func (s *Session) Data() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// passRequest builds the model request for the next pass from the current
// history, page and gathered data.
func (s *Session) passRequest() *core.PassRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := &core.PassRequest{Messages: snapshot(s.history)}
	var system string
	if p := s.profiles.Select(s.page); p != nil {
		system = p.SystemPrompt
		req.Tools = append(req.Tools, p.Tools...)
	}
	req.System = withContextBlock(system, s.page, s.data)
	return req
}

func snapshot(history []types.Message) []types.Message {
	out := make([]types.Message, len(history))
	copy(out, history)
	return out
}

// withContextBlock appends what the session knows about the client's page and
// the values gathered so far to the system prompt.
func withContextBlock(system string, page types.PageContext, data map[string]string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(system))

	if page.URL != "" || page.Title != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Current page: ")
		switch {
		case page.Title != "" && page.URL != "":
			b.WriteString(page.Title + " (" + page.URL + ")")
		case page.Title != "":
			b.WriteString(page.Title)
		default:
			b.WriteString(page.URL)
		}
	}

	if len(data) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Known information:")
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("\n- " + k + ": " + data[k])
		}
	}
	return b.String()
}
