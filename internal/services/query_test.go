package services

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// seededQuery runs one cycle and returns a query service over its store
func seededQuery(t *testing.T) (*QueryService, *CycleResult) {
	t.Helper()
	f := newFixture(t)
	res, err := f.orchestrator().RunCycle(testContext())
	require.NoError(t, err)
	return NewQueryService(f.store), res
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestQueryHTTP_Cycles(t *testing.T) {
	q, res := seededQuery(t)

	var body struct {
		Cycles []struct {
			CycleID          string `json:"cycle_id"`
			CamerasProcessed int    `json:"cameras_processed"`
		} `json:"cycles"`
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, get(t, q, "/api/v1/cycles?limit=5", &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, res.CycleID(), body.Cycles[0].CycleID)
	assert.Equal(t, 3, body.Cycles[0].CamerasProcessed)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, get(t, q, "/api/v1/cycles?limit=abc", &errBody))
	assert.Contains(t, errBody["error"], "invalid limit")
}

func TestQueryHTTP_CycleDashboard(t *testing.T) {
	q, res := seededQuery(t)

	var d Dashboard
	require.Equal(t, http.StatusOK, get(t, q, "/api/v1/cycles/"+res.CycleID(), &d))
	assert.Equal(t, res.CycleID(), d.Cycle.CycleID)
	require.NotNil(t, d.Route)
	assert.Equal(t, "parleys-wolfcreek", d.Route.RouteID)
	require.Len(t, d.Captures, 3)
	assert.Contains(t, d.Captures[0].ImageURL, d.Captures[0].ImageKey)
	assert.Len(t, d.Events, 1)
	assert.Len(t, d.Weather, 1)
	assert.Len(t, d.Passes, 1)
	assert.Len(t, d.Plows, 1)

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, get(t, q, "/api/v1/cycles/1999-01-01T00:00:00", &errBody))
}

func TestQueryHTTP_Lists(t *testing.T) {
	q, _ := seededQuery(t)

	var captures struct {
		Captures []CaptureView `json:"captures"`
		Count    int           `json:"count"`
	}
	require.Equal(t, http.StatusOK, get(t, q, "/api/v1/captures/recent?limit=2", &captures))
	assert.Equal(t, 2, captures.Count)
	assert.NotEmpty(t, captures.Captures[0].ImageURL)

	var routes struct {
		Routes []struct {
			RouteID    string `json:"route_id"`
			HasClosure bool   `json:"has_closure"`
		} `json:"routes"`
	}
	require.Equal(t, http.StatusOK, get(t, q, "/api/v1/routes", &routes))
	require.Len(t, routes.Routes, 2)
	assert.True(t, routes.Routes[0].HasClosure)

	var cameras struct {
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, get(t, q, "/api/v1/cameras", &cameras))
	assert.Equal(t, 3, cameras.Count)

	assert.Equal(t, http.StatusMethodNotAllowed, func() int {
		rec := httptest.NewRecorder()
		q.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/routes", nil))
		return rec.Code
	}())
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultCycleLimit, clampLimit(0, DefaultCycleLimit))
	assert.Equal(t, 7, clampLimit(7, DefaultCycleLimit))
	assert.Equal(t, MaxQueryLimit, clampLimit(100000, DefaultCycleLimit))
}

func dialQuery(t *testing.T, q *QueryService) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&QueryServiceDesc, q)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestQueryGRPC(t *testing.T) {
	ctx := testContext()
	q, res := seededQuery(t)
	conn := dialQuery(t, q)
	method := func(name string) string { return "/" + QueryServiceName + "/" + name }

	cycles := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, method("ListCycles"), wrapperspb.Int32(10), cycles))
	assert.Equal(t, 1.0, cycles.Fields["count"].GetNumberValue())
	first := cycles.Fields["cycles"].GetListValue().GetValues()[0].GetStructValue()
	assert.Equal(t, res.CycleID(), first.Fields["cycle_id"].GetStringValue())

	dashboard := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, method("GetCycle"), wrapperspb.String(res.CycleID()), dashboard))
	assert.Len(t, dashboard.Fields["captures"].GetListValue().GetValues(), 3)

	captures := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, method("RecentCaptures"), wrapperspb.Int32(1), captures))
	assert.Equal(t, 1.0, captures.Fields["count"].GetNumberValue())

	routes := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, method("ListRoutes"), &emptypb.Empty{}, routes))
	assert.Len(t, routes.Fields["routes"].GetListValue().GetValues(), 2)

	err := conn.Invoke(ctx, method("GetCycle"), wrapperspb.String("1999-01-01T00:00:00"), &structpb.Struct{})
	assert.Equal(t, codes.NotFound, status.Code(err))

	err = conn.Invoke(ctx, method("GetCycle"), wrapperspb.String(""), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
