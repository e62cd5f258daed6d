package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertErr  error
	searchReq  *pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchReq = in
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	listResp  *pb.ListCollectionsResponse
	listErr   error
	created   []*pb.CreateCollection
	createErr error
	deleted   []string
	deleteErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = append(m.created, in)
	return &pb.CollectionOperationResponse{Result: m.createErr == nil}, m.createErr
}
func (m *mockCollections) Delete(_ context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.deleted = append(m.deleted, in.GetCollectionName())
	return &pb.CollectionOperationResponse{Result: m.deleteErr == nil}, m.deleteErr
}

func listing(names ...string) *pb.ListCollectionsResponse {
	resp := &pb.ListCollectionsResponse{}
	for _, n := range names {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: n})
	}
	return resp
}

// --- Tests ---

func TestNew_Lazy(t *testing.T) {
	vs, err := New("localhost:0", "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestClose_NilConn(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{})
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	cols := &mockCollections{listResp: listing("tasks")}
	vs := NewWithClients(&mockPoints{}, cols)
	if err := vs.EnsureCollection(context.Background(), "tasks", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols.created) != 0 {
		t.Fatalf("expected no create, got %d", len(cols.created))
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{listResp: listing("other")}
	vs := NewWithClients(&mockPoints{}, cols)
	if err := vs.EnsureCollection(context.Background(), "tasks", 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols.created) != 1 {
		t.Fatalf("expected 1 create, got %d", len(cols.created))
	}
	params := cols.created[0].GetVectorsConfig().GetParams()
	if params.GetSize() != 768 || params.GetDistance() != pb.Distance_Cosine {
		t.Errorf("wrong params: %v", params)
	}
}

func TestEnsureCollection_ListError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("rpc fail")}
	vs := NewWithClients(&mockPoints{}, cols)
	if err := vs.EnsureCollection(context.Background(), "tasks", 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnsureCollection_CreateError(t *testing.T) {
	cols := &mockCollections{listResp: listing(), createErr: errors.New("create fail")}
	vs := NewWithClients(&mockPoints{}, cols)
	if err := vs.EnsureCollection(context.Background(), "tasks", 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateCollection_Recreates(t *testing.T) {
	cols := &mockCollections{listResp: listing("skills")}
	vs := NewWithClients(&mockPoints{}, cols)
	if err := vs.CreateCollection(context.Background(), "skills", 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != "skills" {
		t.Fatalf("expected delete of skills, got %v", cols.deleted)
	}
	if len(cols.created) != 1 {
		t.Fatalf("expected 1 create, got %d", len(cols.created))
	}
}

func TestCreateCollection_Missing(t *testing.T) {
	cols := &mockCollections{listResp: listing()}
	vs := NewWithClients(&mockPoints{}, cols)
	if err := vs.CreateCollection(context.Background(), "skills", 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols.deleted) != 0 {
		t.Fatalf("expected no delete, got %v", cols.deleted)
	}
}

func TestCreateCollection_DeleteError(t *testing.T) {
	cols := &mockCollections{listResp: listing("skills"), deleteErr: errors.New("locked")}
	vs := NewWithClients(&mockPoints{}, cols)
	if err := vs.CreateCollection(context.Background(), "skills", 768); err == nil {
		t.Fatal("expected error")
	}
	if len(cols.created) != 0 {
		t.Fatal("create must not run after failed delete")
	}
}

func TestDeleteCollection_Error(t *testing.T) {
	cols := &mockCollections{deleteErr: errors.New("fail")}
	vs := NewWithClients(&mockPoints{}, cols)
	if err := vs.DeleteCollection(context.Background(), "tasks"); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert_Empty(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{})
	if err := vs.Upsert(context.Background(), "tasks", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.upsertReq != nil {
		t.Fatal("empty upsert must not call qdrant")
	}
}

func TestUpsert_Success(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{})

	points := []Point{{
		ID:     "7f1c1e8a-4b8e-5d2a-9c3e-0a1b2c3d4e5f",
		Vector: []float32{1, 0, 0, 0},
		Payload: map[string]any{
			"task_description": "Analyze user needs",
			"related_index":    2,
			"count64":          int64(99),
			"value":            3.75,
			"hot_technology":   true,
			"other":            []int{1, 2},
		},
	}}
	if err := vs.Upsert(context.Background(), "tasks", points); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := pts.upsertReq
	if req.GetCollectionName() != "tasks" || !req.GetWait() {
		t.Fatalf("wrong request: %v", req)
	}
	p := req.GetPoints()[0]
	if p.GetId().GetUuid() != points[0].ID {
		t.Errorf("wrong id: %v", p.GetId())
	}
	pl := p.GetPayload()
	if pl["related_index"].GetIntegerValue() != 2 {
		t.Errorf("int not converted: %v", pl["related_index"])
	}
	if pl["value"].GetDoubleValue() != 3.75 {
		t.Errorf("float not converted: %v", pl["value"])
	}
	if !pl["hot_technology"].GetBoolValue() {
		t.Errorf("bool not converted: %v", pl["hot_technology"])
	}
	if pl["other"].GetStringValue() != "[1 2]" {
		t.Errorf("fallback not stringified: %v", pl["other"])
	}
}

func TestUpsert_Error(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{})
	if err := vs.Upsert(context.Background(), "tasks", []Point{{ID: "id1", Vector: []float32{1, 0}}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_Success(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
					Score: 0.95,
					Payload: map[string]*pb.Value{
						"task_description": {Kind: &pb.Value_StringValue{StringValue: "Analyze user needs"}},
						"related_index":    {Kind: &pb.Value_IntegerValue{IntegerValue: 3}},
						"value":            {Kind: &pb.Value_DoubleValue{DoubleValue: 4.5}},
						"hot_technology":   {Kind: &pb.Value_BoolValue{BoolValue: true}},
					},
				},
				{
					Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p2"}},
					Score: 0.5,
				},
			},
		},
	}
	vs := NewWithClients(pts, &mockCollections{})
	hits, err := vs.Search(context.Background(), "tasks", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.searchReq.GetLimit() != 3 || pts.searchReq.GetCollectionName() != "tasks" {
		t.Errorf("wrong request: %v", pts.searchReq)
	}
	if !pts.searchReq.GetWithPayload().GetEnable() {
		t.Error("payload must be requested")
	}
	if len(hits) != 2 || hits[0].ID != "p1" || hits[1].ID != "p2" {
		t.Fatalf("rank order lost: %v", hits)
	}
	pl := hits[0].Payload
	if pl["task_description"] != "Analyze user needs" {
		t.Errorf("wrong string: %v", pl["task_description"])
	}
	if pl["related_index"] != int64(3) {
		t.Errorf("wrong int: %#v", pl["related_index"])
	}
	if pl["value"] != 4.5 {
		t.Errorf("wrong double: %#v", pl["value"])
	}
	if pl["hot_technology"] != true {
		t.Errorf("wrong bool: %#v", pl["hot_technology"])
	}
}

func TestSearch_Error(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{})
	if _, err := vs.Search(context.Background(), "tasks", []float32{1}, 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestFromValue_Nested(t *testing.T) {
	v := &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: []*pb.Value{
		{Kind: &pb.Value_StringValue{StringValue: "a"}},
		{Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: map[string]*pb.Value{
			"n": {Kind: &pb.Value_IntegerValue{IntegerValue: 1}},
		}}}},
	}}}}
	got, ok := fromValue(v).([]any)
	if !ok || len(got) != 2 || got[0] != "a" {
		t.Fatalf("wrong list: %#v", got)
	}
	if m, ok := got[1].(map[string]any); !ok || m["n"] != int64(1) {
		t.Fatalf("wrong struct: %#v", got[1])
	}
	if fromValue(toValue(nil)) != nil {
		t.Error("null should round trip to nil")
	}
}
