package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"diary-assistant/internal/storage"
	"diary-assistant/internal/storage/mocks"
)

func TestTaskRecorder_Record(t *testing.T) {
	results := []SearchResult{{NoteID: "note-1", Text: "a"}, {NoteID: "note-2", Text: "b"}}

	tests := []struct {
		name        string
		userID      string
		results     []SearchResult
		candidates  []ExtractedTask
		setupMocks  func(notes *mocks.MockNoteStore, tasks *mocks.MockTaskStore)
		wantCreated int
		wantErr     bool
	}{
		{
			name:       "creates on first note with filter user",
			userID:     "user-9",
			results:    results,
			candidates: []ExtractedTask{{Description: " Send report ", DueDate: "2024-05-01"}},
			setupMocks: func(notes *mocks.MockNoteStore, tasks *mocks.MockTaskStore) {
				tasks.EXPECT().FindOpen(gomock.Any(), "t1", "note-1", "Send report").Return(nil, storage.ErrNotFound)
				tasks.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, task *storage.Task) error {
					if task.UserID != "user-9" || task.NoteID != "note-1" || task.Status != storage.TaskStatusOpen {
						t.Errorf("Create() task = %+v", task)
					}
					want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
					if task.DueDate == nil || !task.DueDate.Equal(want) {
						t.Errorf("Create() due date = %v, want %v", task.DueDate, want)
					}
					return nil
				})
			},
			wantCreated: 1,
		},
		{
			name:       "owner falls back to note author",
			results:    results,
			candidates: []ExtractedTask{{Description: "Call Bob", DueDate: "whenever"}},
			setupMocks: func(notes *mocks.MockNoteStore, tasks *mocks.MockTaskStore) {
				notes.EXPECT().Get(gomock.Any(), "t1", "note-1").Return(&storage.Note{ID: "note-1", UserID: "author"}, nil)
				tasks.EXPECT().FindOpen(gomock.Any(), "t1", "note-1", "Call Bob").Return(nil, storage.ErrNotFound)
				tasks.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, task *storage.Task) error {
					if task.UserID != "author" {
						t.Errorf("Create() owner = %s, want author", task.UserID)
					}
					if task.DueDate != nil {
						t.Errorf("Create() due date = %v, want nil", task.DueDate)
					}
					return nil
				})
			},
			wantCreated: 1,
		},
		{
			name:       "skips open duplicate and blank descriptions",
			userID:     "u",
			results:    results,
			candidates: []ExtractedTask{{Description: "Existing"}, {Description: "  "}},
			setupMocks: func(notes *mocks.MockNoteStore, tasks *mocks.MockTaskStore) {
				tasks.EXPECT().FindOpen(gomock.Any(), "t1", "note-1", "Existing").Return(&storage.Task{ID: "x"}, nil)
			},
			wantCreated: 0,
		},
		{
			name:       "missing note skips everything",
			results:    results,
			candidates: []ExtractedTask{{Description: "Orphan"}},
			setupMocks: func(notes *mocks.MockNoteStore, tasks *mocks.MockTaskStore) {
				notes.EXPECT().Get(gomock.Any(), "t1", "note-1").Return(nil, storage.ErrNotFound)
			},
			wantCreated: 0,
		},
		{
			name:       "no results means nothing to attach to",
			candidates: []ExtractedTask{{Description: "Float"}},
			setupMocks: func(notes *mocks.MockNoteStore, tasks *mocks.MockTaskStore) {},
		},
		{
			name:       "store error propagates",
			userID:     "u",
			results:    results,
			candidates: []ExtractedTask{{Description: "Boom"}},
			setupMocks: func(notes *mocks.MockNoteStore, tasks *mocks.MockTaskStore) {
				tasks.EXPECT().FindOpen(gomock.Any(), "t1", "note-1", "Boom").Return(nil, errors.New("db locked"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			notes := mocks.NewMockNoteStore(ctrl)
			tasks := mocks.NewMockTaskStore(ctrl)
			tt.setupMocks(notes, tasks)

			created, err := NewTaskRecorder(notes, tasks).Record(context.Background(), "t1", tt.userID, tt.results, tt.candidates)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Record() error = %v, wantErr %v", err, tt.wantErr)
			}
			if created != tt.wantCreated {
				t.Errorf("Record() created = %d, want %d", created, tt.wantCreated)
			}
		})
	}
}

func TestTaskRecorder_DedupAgainstStore(t *testing.T) {
	ctx := context.Background()
	f := newNoteFixture(t)
	note := f.add(t, "t1", "u1", "", "TODO: renew passport")
	recorder := NewTaskRecorder(f.notes, f.tasks)
	results := []SearchResult{{NoteID: note.ID, Text: note.Content}}
	candidates := []ExtractedTask{{Description: "renew passport"}}

	for i, want := range []int{1, 0} {
		created, err := recorder.Record(ctx, "t1", "", results, candidates)
		if err != nil {
			t.Fatalf("Record() #%d error = %v", i, err)
		}
		if created != want {
			t.Errorf("Record() #%d created = %d, want %d", i, created, want)
		}
	}

	open, err := f.tasks.List(ctx, storage.TaskFilter{TenantID: "t1", Status: storage.TaskStatusOpen})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(open) != 1 || open[0].UserID != "u1" || open[0].NoteID != note.ID {
		t.Errorf("open tasks = %+v", open)
	}
}
