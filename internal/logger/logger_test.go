package logger

import (
	"log/slog"
	"testing"
)

func TestSetFormatSwitchesHandler(t *testing.T) {
	SetFormat("text")
	if _, ok := Get().Handler().(*slog.TextHandler); !ok {
		t.Error("expected a text handler after SetFormat(\"text\")")
	}

	SetFormat("json")
	if _, ok := Get().Handler().(*slog.JSONHandler); !ok {
		t.Error("expected a JSON handler after SetFormat(\"json\")")
	}
}
