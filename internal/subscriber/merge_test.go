package subscriber_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/syncstate/internal/backend"
	"github.com/stacklok/syncstate/internal/backend/memory"
	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/subscriber"
	"github.com/stacklok/syncstate/internal/subscriber/mocks"
)

func TestNewMerge_Persistence(t *testing.T) {
	t.Parallel()

	start := backend.Tag{Kind: backend.TagVersion, Name: "v2.0.0"}
	end := backend.Tag{Kind: backend.TagVersion, Name: "v1.0.0"}
	roots := []resource.Path{resource.NewPath("p")}

	tests := []struct {
		name        string
		setupMock   func(m *mocks.MockPersistence)
		cancel      bool
		errContains string
	}{
		{
			name: "saves the merge record",
			setupMock: func(m *mocks.MockPersistence) {
				m.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, r *subscriber.MergeRecord) error {
						assert.Equal(t, "version:v2.0.0", r.Start)
						assert.Equal(t, "version:v1.0.0", r.End)
						assert.Equal(t, roots, r.Roots)
						assert.False(t, r.CreatedAt.IsZero())
						return nil
					})
			},
		},
		{
			name: "fails when the record cannot be saved",
			setupMock: func(m *mocks.MockPersistence) {
				m.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
			},
			errContains: "failed to persist merge: disk full",
		},
		{
			name: "cancel deletes the record",
			setupMock: func(m *mocks.MockPersistence) {
				m.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
				m.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
			},
			cancel: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			persistence := mocks.NewMockPersistence(ctrl)
			tt.setupMock(persistence)

			// end is older than start: logged, not rejected
			s, err := subscriber.NewMerge(context.Background(), resource.NewMemoryStore(), memory.New(),
				start, end, roots, subscriber.WithPersistence(persistence))
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			defer s.Dispose()

			if tt.cancel {
				require.NoError(t, s.Cancel(context.Background()))
			}
		})
	}
}

func TestCancel_DeleteFails(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := mocks.NewMockPersistence(ctrl)
	persistence.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	persistence.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(errors.New("read-only filesystem"))

	s, err := subscriber.NewMerge(context.Background(), resource.NewMemoryStore(), memory.New(),
		backend.Head, backend.Tag{Kind: backend.TagBranch, Name: "feature"}, nil,
		subscriber.WithPersistence(persistence))
	require.NoError(t, err)

	err = s.Cancel(context.Background())
	assert.ErrorContains(t, err, "failed to delete persisted merge")
}

func TestRestoreMerges_LoadFails(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := mocks.NewMockPersistence(ctrl)
	persistence.EXPECT().LoadAll(gomock.Any()).Return(nil, errors.New("permission denied"))

	_, err := subscriber.RestoreMerges(context.Background(), resource.NewMemoryStore(), memory.New(),
		subscriber.WithPersistence(persistence))
	assert.ErrorContains(t, err, "failed to load merges: permission denied")
}
