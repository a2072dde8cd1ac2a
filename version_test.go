package goadsym

import (
	"testing"
)

func TestLibraryVersion(t *testing.T) {
	v := LibraryVersion()
	if v == "" {
		t.Error("LibraryVersion() returned empty string")
	}

	expected := "0.1.0"
	if v != expected {
		t.Errorf("LibraryVersion() = %q, want %q", v, expected)
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("GetBuildInfo().Version is empty")
	}

	str := info.String()
	if str == "" {
		t.Error("BuildInfo.String() returned empty string")
	}
}

func TestBuildInfoString(t *testing.T) {
	tests := []struct {
		name string
		info BuildInfo
		want string
	}{
		{
			name: "basic version",
			info: BuildInfo{Version: "0.1.0"},
			want: "goadsym 0.1.0",
		},
		{
			name: "with commit",
			info: BuildInfo{Version: "0.1.0", GitCommit: "abc1234"},
			want: "goadsym 0.1.0 (commit: abc1234)",
		},
		{
			name: "with dirty commit",
			info: BuildInfo{Version: "0.1.0", GitCommit: "abc1234", Dirty: true},
			want: "goadsym 0.1.0 (commit: abc1234-dirty)",
		},
		{
			name: "full info",
			info: BuildInfo{
				Version:   "0.1.0",
				GitCommit: "abc1234",
				GitTag:    "v0.1.0",
				GoVersion: "go1.24",
			},
			want: "goadsym 0.1.0 (commit: abc1234) [v0.1.0] - go1.24",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.info.String()
			if got != tt.want {
				t.Errorf("BuildInfo.String() = %q, want %q", got, tt.want)
			}
		})
	}
}
