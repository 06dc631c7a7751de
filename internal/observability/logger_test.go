package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("test-agent", &buf)
	if l == nil {
		t.Fatal("NewLogger returned nil")
	}
	if l.AgentName() != "test-agent" {
		t.Errorf("AgentName = %q", l.AgentName())
	}
}

func TestNewLogger_NilWriter(t *testing.T) {
	l := NewLogger("test", nil)
	if l == nil {
		t.Fatal("NewLogger with nil writer returned nil")
	}
	// Should not panic on log call.
	l.Info("test message")
}

func TestLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("myagent", &buf)
	l.Info("hello world", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "hello world") {
		t.Errorf("output missing message: %s", output)
	}
	if !strings.Contains(output, `"agent":"myagent"`) {
		t.Errorf("output missing agent: %s", output)
	}

	// Should be valid JSON.
	var m map[string]any
	if err := json.Unmarshal([]byte(output), &m); err != nil {
		t.Errorf("invalid JSON: %v", err)
	}
}

func TestLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("agent1", &buf)
	l.Debug("debug msg")

	if !strings.Contains(buf.String(), "debug msg") {
		t.Error("debug message not found")
	}
}

func TestLogger_Warn(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("agent1", &buf)
	l.Warn("warning msg")

	if !strings.Contains(buf.String(), "warning msg") {
		t.Error("warn message not found")
	}
}

func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("agent1", &buf)
	l.Error("error msg", "code", 500)

	output := buf.String()
	if !strings.Contains(output, "error msg") {
		t.Error("error message not found")
	}
	if !strings.Contains(output, "ERROR") {
		t.Error("expected ERROR level")
	}
}

func TestLogger_Decision(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("agent1", &buf)
	l.Decision("claude-3-haiku", 87.5, 0.003, "cache_hit", false)

	output := buf.String()
	if !strings.Contains(output, "routing_decision") {
		t.Error("routing_decision event not found")
	}
	if !strings.Contains(output, `"model":"claude-3-haiku"`) {
		t.Errorf("model not found: %s", output)
	}
	if !strings.Contains(output, `"confidence":87.5`) {
		t.Errorf("confidence not found: %s", output)
	}
}

func TestLogger_Outcome(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("agent1", &buf)
	l.Outcome("claude-3-sonnet", true, true, 2)

	output := buf.String()
	if !strings.Contains(output, `"used_fallback":true`) {
		t.Errorf("used_fallback not found: %s", output)
	}
	if !strings.Contains(output, `"attempts":2`) {
		t.Errorf("attempts not found: %s", output)
	}
}

func TestLogger_Budget(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("agent1", &buf)
	l.Budget("daily", "warning", 0.85, 1.0)

	output := buf.String()
	if !strings.Contains(output, `"scope":"daily"`) {
		t.Errorf("scope not found: %s", output)
	}
	if !strings.Contains(output, `"result":"warning"`) {
		t.Errorf("result not found: %s", output)
	}
}

func TestLogger_Evolution(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("agent1", &buf)
	l.Evolution("promote", "agent-x")

	output := buf.String()
	if !strings.Contains(output, `"event":"promote"`) {
		t.Errorf("event not found: %s", output)
	}
	if !strings.Contains(output, `"target_agent_id":"agent-x"`) {
		t.Errorf("target_agent_id not found: %s", output)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("agent1", &buf)
	l2 := l.With("task_id", "t_123")

	l2.Info("with context")

	output := buf.String()
	if !strings.Contains(output, "t_123") {
		t.Errorf("With context not found: %s", output)
	}
	// The derived logger keeps the original agent name.
	if l2.AgentName() != "agent1" {
		t.Errorf("AgentName = %q", l2.AgentName())
	}
}
