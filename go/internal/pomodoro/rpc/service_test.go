package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mcdev12/studybuddy/go/internal/groups"
	"github.com/mcdev12/studybuddy/go/internal/identity"
	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/repository"
)

type rpcFixture struct {
	server *httptest.Server
	auth   *identity.JWTResolver
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	oracle := groups.NewStaticOracle()
	oracle.AddGroup(models.StudyGroup{ID: 7, Name: "algorithms", CreatedBy: 1})
	oracle.AddMember(7, 2, models.RoleMember)

	cfg := pomodoro.DefaultConfig()
	cfg.DefaultSyncPolicy = models.SyncPolicyForced
	app := pomodoro.NewApp(repository.NewMemoryStore(clock), oracle, nil, nil, clock, cfg)
	auth := identity.NewJWTResolver("test-secret", clock)

	mux := http.NewServeMux()
	mux.Handle(NewTimerServiceHandler(NewService(app, auth)))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &rpcFixture{server: server, auth: auth}
}

func (f *rpcFixture) call(t *testing.T, procedure string, userID int64, fields map[string]any) (*structpb.Struct, error) {
	t.Helper()
	msg, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	client := connect.NewClient[structpb.Struct, structpb.Struct](f.server.Client(), f.server.URL+procedure)
	req := connect.NewRequest(msg)
	if userID != 0 {
		token, err := f.auth.Issue(models.User{ID: userID, Username: "user"}, time.Hour)
		require.NoError(t, err)
		req.Header().Set("Authorization", "Bearer "+token)
	}

	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func TestGetTimer(t *testing.T) {
	f := newRPCFixture(t)

	got, err := f.call(t, GetTimerProcedure, 1, map[string]any{"group_id": 7})
	require.NoError(t, err)
	assert.Equal(t, "idle", got.GetFields()["state"].GetStringValue())
	assert.Equal(t, float64(1500), got.GetFields()["remaining_seconds"].GetNumberValue())
	assert.True(t, got.GetFields()["is_leader"].GetBoolValue())
}

func TestApplyAction(t *testing.T) {
	f := newRPCFixture(t)

	got, err := f.call(t, ApplyActionProcedure, 1, map[string]any{"group_id": 7, "action": "start"})
	require.NoError(t, err)
	assert.Equal(t, "running", got.GetFields()["state"].GetStringValue())

	_, err = f.call(t, ApplyActionProcedure, 2, map[string]any{"group_id": 7, "action": "pause"})
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = f.call(t, ApplyActionProcedure, 1, map[string]any{"group_id": 7, "action": "dance"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = f.call(t, ApplyActionProcedure, 0, map[string]any{"group_id": 7, "action": "start"})
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = f.call(t, GetTimerProcedure, 1, map[string]any{"group_id": 99})
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestUpdateSettings(t *testing.T) {
	f := newRPCFixture(t)

	got, err := f.call(t, UpdateSettingsProcedure, 1, map[string]any{
		"group_id": 7,
		"settings": map[string]any{"work_duration": 1800, "sync_mode": "flexible"},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1800), got.GetFields()["work_duration"].GetNumberValue())
	assert.Equal(t, "flexible", got.GetFields()["sync_mode"].GetStringValue())

	_, err = f.call(t, UpdateSettingsProcedure, 1, map[string]any{
		"group_id": 7,
		"settings": map[string]any{"break_duration": 5},
	})
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	var cerr *connect.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "break_duration must be at least 60", cerr.Message())
}
