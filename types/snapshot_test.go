package types

import "testing"

func TestIndexStatus_IsTerminal(t *testing.T) {
	terminal := []IndexStatus{StatusCompleted, StatusError, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
		if s.IsActive() {
			t.Errorf("%s.IsActive() = true, want false", s)
		}
	}

	active := []IndexStatus{StatusIndexing, StatusPaused}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
		if !s.IsActive() {
			t.Errorf("%s.IsActive() = false, want true", s)
		}
	}

	if StatusCreated.IsTerminal() || StatusCreated.IsActive() {
		t.Error("created must be neither terminal nor active")
	}
}

func TestProgressSnapshot_Validate(t *testing.T) {
	tests := []struct {
		name    string
		snap    ProgressSnapshot
		wantErr bool
	}{
		{"empty", ProgressSnapshot{Status: StatusCreated}, false},
		{"mid run", ProgressSnapshot{Status: StatusIndexing, ProgressPercentage: 42.5, FilesProcessed: 85, TotalFiles: 200}, false},
		{"percentage over 100", ProgressSnapshot{ProgressPercentage: 100.5}, true},
		{"negative percentage", ProgressSnapshot{ProgressPercentage: -1}, true},
		{"processed exceeds total", ProgressSnapshot{FilesProcessed: 201, TotalFiles: 200}, true},
		{"total unknown yet", ProgressSnapshot{FilesProcessed: 10, TotalFiles: 0}, false},
		{"negative counter", ProgressSnapshot{ErrorsCount: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProgressSnapshot_CloneIndependent(t *testing.T) {
	file := "notes/a.md"
	rate := 12.5
	orig := &ProgressSnapshot{
		Status:         StatusIndexing,
		CurrentFile:    &file,
		ProcessingRate: &rate,
		FilesProcessed: 10,
	}

	clone := orig.Clone()
	*clone.CurrentFile = "notes/b.md"
	clone.FilesProcessed = 99

	if *orig.CurrentFile != "notes/a.md" {
		t.Errorf("clone mutation leaked into original: %s", *orig.CurrentFile)
	}
	if orig.FilesProcessed != 10 {
		t.Errorf("FilesProcessed = %d, want 10", orig.FilesProcessed)
	}
}

func TestFrameType_Known(t *testing.T) {
	known := []FrameType{
		FrameProgressUpdate, FrameStatusChange, FrameError,
		FrameHeartbeat, FrameConnectionEstablished, FrameOperationResponse,
	}
	for _, f := range known {
		if !f.Known() {
			t.Errorf("%s.Known() = false, want true", f)
		}
	}
	if FrameType("vacuum_update").Known() {
		t.Error("unknown frame type reported as known")
	}
}
