package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/adribv/edutool/apps/api/echo"
	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
	"github.com/adribv/edutool/services/email"
	"github.com/adribv/edutool/services/logger"
	"github.com/adribv/edutool/storage/database/inmem"
	"github.com/adribv/edutool/tests"
)

type fixture struct {
	conf      *core.Config
	app       *Server
	staffRepo staff.Repository
	permSvc   permission.Service
	actSvc    activity.Service
	mailSvc   *emailsvc.ConsoleServiceMock
}

type option func(*core.Config, *ServerDeps)

func testConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Edutool",
		SecretKey:        "test-secret",
		DefaultFromEmail: mail.Address{Name: "Edutool", Address: "noreply@edutool.test"},
		StorageEngine:    core.EngineMemory,
		Server: core.ServerConfig{
			JWTExpirationDelta: time.Hour,
			DisableReqLogs:     true,
		},
	}
}

func setup(t *testing.T, opts ...option) *fixture {
	conf := testConfig()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	validate, translator := testutil.NewValidator()

	f := &fixture{
		conf:      conf,
		staffRepo: inmemdb.NewStaffRepository(db),
		mailSvc:   emailsvc.NewConsoleServiceMock(conf),
	}
	staffSvc := staff.NewService(f.staffRepo)
	f.permSvc = permission.NewService(inmemdb.NewPermissionRepository(db), staffSvc, f.mailSvc, validate)
	f.actSvc = activity.NewService(inmemdb.NewActivityRepository(db), staffSvc, f.mailSvc, validate)

	deps := ServerDeps{
		Conf:          conf,
		Logger:        logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf),
		Translator:    translator,
		ActionPolicy:  rbac.DefaultActionPolicy(),
		StaffSvc:      staffSvc,
		PermissionSvc: f.permSvc,
		ActivitySvc:   f.actSvc,
	}
	for _, opt := range opts {
		opt(conf, &deps)
	}
	f.app = NewServer(deps)
	return f
}

// staffWithPermissions creates a staff member holding the role's default permissions.
func (f *fixture) staffWithPermissions(t *testing.T, id string, role rbac.Role) staff.Staff {
	s := testutil.CreateStaff(t, f.staffRepo, id, "Staff "+id, "", role, "")
	_, _, err := f.permSvc.Upsert(context.Background(), permission.Assignment{StaffID: id})
	require.NoError(t, err)
	return s
}

func (f *fixture) staffWithActivities(t *testing.T, id string, assignments ...activity.ActivityAssignment) staff.Staff {
	s := testutil.CreateStaff(t, f.staffRepo, id, "Staff "+id, "", rbac.RoleTeacher, "")
	_, _, err := f.actSvc.Upsert(context.Background(), activity.Assignment{StaffID: id, ActivityAssignments: assignments})
	require.NoError(t, err)
	return s
}

func (f *fixture) token(t *testing.T, s staff.Staff) string {
	token, err := GenerateToken(f.conf, NewClaims(f.conf, s))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

type httpTest struct {
	name        string
	method      string
	path        string
	body        interface{}
	token       string
	wantCode    int
	wantMessage string
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	if obj == nil {
		return nil
	}
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

// do runs the request and decodes the envelope; data is decoded into out when given.
func (f *fixture) do(t *testing.T, tt httpTest, out ...interface{}) (*httptest.ResponseRecorder, envelope) {
	var data []byte
	if raw, ok := tt.body.([]byte); ok {
		data = raw
	} else {
		data = marshalObj(t, tt.body)
	}
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, data)
	f.app.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	if len(out) > 0 && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out[0]))
	}
	return rec, env
}

// checkCodeAndMessage runs tt and checks the status code and, when wanted, the message.
func (f *fixture) checkCodeAndMessage(t *testing.T, tt httpTest) envelope {
	rec, env := f.do(t, tt)
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantMessage != "" && env.Message != tt.wantMessage {
		t.Errorf("failed! message = %q; wantMessage %q", env.Message, tt.wantMessage)
	}
	return env
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}
