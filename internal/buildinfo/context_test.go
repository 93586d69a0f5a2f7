package buildinfo

import (
	"runtime"
	"testing"
)

func TestContext_Version(t *testing.T) {
	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{name: "nil context", ctx: nil, want: UnknownValue},
		{name: "empty version", ctx: NewContext("", "2024-05-01"), want: UnknownValue},
		{name: "valid version", ctx: NewContext("1.0.0", "2024-05-01"), want: "1.0.0"},
		{name: "version with pre-release tag", ctx: NewContext("1.0.0-beta.1", ""), want: "1.0.0-beta.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.Version(); got != tt.want {
				t.Errorf("Context.Version() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContext_BuildDate(t *testing.T) {
	var nilCtx *Context
	if got := nilCtx.BuildDate(); got != UnknownValue {
		t.Errorf("nil Context.BuildDate() = %v, want %v", got, UnknownValue)
	}
	if got := NewContext("1.0.0", "2024-05-01").BuildDate(); got != "2024-05-01" {
		t.Errorf("Context.BuildDate() = %v, want 2024-05-01", got)
	}
}

func TestContext_UserAgent(t *testing.T) {
	want := "birdnet-display/1.0.0 (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
	if got := NewContext("1.0.0", "").UserAgent(); got != want {
		t.Errorf("Context.UserAgent() = %v, want %v", got, want)
	}
}
