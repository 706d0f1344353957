package main

import (
	"errors"
	"testing"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantPath string
		want     usecase.ImportTargets
		wantErr  error
	}{
		{
			name: "all targets by default",
			args: nil,
			want: usecase.ImportTargets{Postgres: true, Qdrant: true, Minio: true},
		},
		{
			name:     "snapshot path and skip minio",
			args:     []string{"-snapshot", "data/catalog.json", "-skip-minio"},
			wantPath: "data/catalog.json",
			want:     usecase.ImportTargets{Postgres: true, Qdrant: true},
		},
		{
			name:    "everything skipped",
			args:    []string{"-skip-postgres", "-skip-qdrant", "-skip-minio"},
			wantErr: e.ErrStatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlags: %v", err)
			}
			if opts.snapshotPath != tt.wantPath {
				t.Errorf("snapshot = %q, want %q", opts.snapshotPath, tt.wantPath)
			}
			if opts.targets != tt.want {
				t.Errorf("targets = %+v, want %+v", opts.targets, tt.want)
			}
		})
	}
}

func TestParseFlags_Unknown(t *testing.T) {
	if _, err := parseFlags([]string{"-bogus"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}
