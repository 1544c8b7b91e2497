package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/starchart-viz/starchart/pkg/cache"
	"github.com/starchart-viz/starchart/pkg/cluster"
	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/layout"
	"github.com/starchart-viz/starchart/pkg/pipeline"
	"github.com/starchart-viz/starchart/pkg/store"
)

// newTestServer builds a server backed by a temp file store and a null cache.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	docs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(cache.NewNullCache(), nil, logger)

	srv := New(Config{
		Store:  docs,
		Runner: runner,
		Logger: logger,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// testExtraction returns a small two-section extraction.
func testExtraction() *concept.Extraction {
	return &concept.Extraction{
		Title: "Neural Networks",
		Sections: []concept.Section{
			{
				Name:  "Introduction",
				Index: 0,
				Mentions: []concept.Mention{
					{Label: "Neural Network", Variants: []string{"NN"}, Layer: "priority"},
					{Label: "Neuron", Layer: "secondary"},
				},
				Relations: []concept.RawRelation{
					{Source: "Neural Network", Target: "Neuron", Type: "contains"},
				},
			},
			{
				Name:  "Training",
				Index: 1,
				Mentions: []concept.Mention{
					{Label: "NN", Layer: "priority"},
					{Label: "Backpropagation", Layer: "secondary"},
				},
				Relations: []concept.RawRelation{
					{Source: "NN", Target: "Backpropagation", Type: "uses"},
				},
			},
		},
	}
}

func postDocument(t *testing.T, ts *httptest.Server) store.Document {
	t.Helper()

	body, err := json.Marshal(testExtraction())
	if err != nil {
		t.Fatalf("marshal extraction: %v", err)
	}
	resp, err := http.Post(ts.URL+"/v1/documents", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/documents: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var doc store.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	return doc
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCreateDocument(t *testing.T) {
	ts := newTestServer(t)
	doc := postDocument(t, ts)

	if doc.ID == "" {
		t.Error("document ID not assigned")
	}
	if doc.Title != "Neural Networks" {
		t.Errorf("Title = %q, want %q", doc.Title, "Neural Networks")
	}
	if doc.Snapshot == nil || len(doc.Snapshot.Entities) != 3 {
		t.Fatalf("snapshot entities = %v, want 3", doc.Snapshot)
	}
	if len(doc.Constellations) == 0 {
		t.Error("expected fallback constellations")
	}
}

func TestCreateDocumentRejectsBadBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/documents", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	var envelope struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Code == "" {
		t.Error("error envelope missing code")
	}
}

func TestListDocuments(t *testing.T) {
	ts := newTestServer(t)
	postDocument(t, ts)

	resp, err := http.Get(ts.URL + "/v1/documents")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var list []store.DocumentSummary
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
	if list[0].Entities != 3 {
		t.Errorf("Entities = %d, want 3", list[0].Entities)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/documents/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetScene(t *testing.T) {
	ts := newTestServer(t)
	doc := postDocument(t, ts)

	resp, err := http.Get(ts.URL + "/v1/documents/" + doc.ID + "/scene?detail=detailed")
	if err != nil {
		t.Fatalf("GET scene: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var scene layout.Scene
	if err := json.NewDecoder(resp.Body).Decode(&scene); err != nil {
		t.Fatalf("decode scene: %v", err)
	}
	if len(scene.Nodes) != 3 {
		t.Errorf("len(Nodes) = %d, want 3", len(scene.Nodes))
	}
}

func TestGetTree(t *testing.T) {
	ts := newTestServer(t)
	doc := postDocument(t, ts)

	resp, err := http.Get(ts.URL + "/v1/documents/" + doc.ID + "/tree")
	if err != nil {
		t.Fatalf("GET tree: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var tree layout.TreeNode
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if tree.ID != "neural network" {
		t.Errorf("root = %q, want most connected concept", tree.ID)
	}
	if len(tree.Children) != 2 {
		t.Errorf("len(Children) = %d, want 2", len(tree.Children))
	}
}

func TestGetTreeExplicitRoot(t *testing.T) {
	ts := newTestServer(t)
	doc := postDocument(t, ts)

	resp, err := http.Get(ts.URL + "/v1/documents/" + doc.ID + "/tree?root=backpropagation")
	if err != nil {
		t.Fatalf("GET tree: %v", err)
	}
	defer resp.Body.Close()

	var tree layout.TreeNode
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if tree.ID != "backpropagation" {
		t.Errorf("root = %q, want %q", tree.ID, "backpropagation")
	}
	if len(tree.Children) != 1 || tree.Children[0].ID != "neural network" {
		t.Fatalf("unexpected children: %+v", tree.Children)
	}
	if !tree.Children[0].Reversed {
		t.Error("edge into the root should be marked reversed")
	}
}

func TestGetSceneSummaryFiltersTiers(t *testing.T) {
	ts := newTestServer(t)
	doc := postDocument(t, ts)

	resp, err := http.Get(ts.URL + "/v1/documents/" + doc.ID + "/scene?detail=summary")
	if err != nil {
		t.Fatalf("GET scene: %v", err)
	}
	defer resp.Body.Close()

	var scene layout.Scene
	if err := json.NewDecoder(resp.Body).Decode(&scene); err != nil {
		t.Fatalf("decode scene: %v", err)
	}
	if len(scene.Nodes) >= 3 {
		t.Errorf("summary view shows %d nodes, want fewer than 3", len(scene.Nodes))
	}
}

func TestGetSceneRejectsBadDetail(t *testing.T) {
	ts := newTestServer(t)
	doc := postDocument(t, ts)

	resp, err := http.Get(ts.URL + "/v1/documents/" + doc.ID + "/scene?detail=bogus")
	if err != nil {
		t.Fatalf("GET scene: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetConstellations(t *testing.T) {
	ts := newTestServer(t)
	doc := postDocument(t, ts)

	resp, err := http.Get(ts.URL + "/v1/documents/" + doc.ID + "/constellations")
	if err != nil {
		t.Fatalf("GET constellations: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var groups []cluster.Constellation
	if err := json.NewDecoder(resp.Body).Decode(&groups); err != nil {
		t.Fatalf("decode groups: %v", err)
	}
	if len(groups) == 0 {
		t.Error("expected at least one constellation")
	}
}

func TestDeleteDocument(t *testing.T) {
	ts := newTestServer(t)
	doc := postDocument(t, ts)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/documents/"+doc.ID, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/v1/documents/" + doc.ID)
	if err != nil {
		t.Fatalf("GET after delete: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", getResp.StatusCode)
	}
}
