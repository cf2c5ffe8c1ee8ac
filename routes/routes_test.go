package routes

import (
	"ResumeAI/middleware"
	"ResumeAI/pkg/chain"
	"ResumeAI/pkg/database"
	"ResumeAI/pkg/prompts"
	"ResumeAI/pkg/services"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

// scriptedLLM answers prompts by their shape: question lists, job
// sections, or an echo for chat turns.
type scriptedLLM struct {
	mu         sync.Mutex
	fail       bool
	lastSystem string
	lastPrompt string
}

func (s *scriptedLLM) last() (system, prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSystem, s.lastPrompt
}

func (s *scriptedLLM) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func (s *scriptedLLM) Chat(ctx context.Context, chat []services.ChatMessage) (string, error) {
	last := chat[len(chat)-1].Text
	s.mu.Lock()
	fail := s.fail
	s.lastPrompt = last
	s.lastSystem = ""
	if chat[0].Role == services.RoleSystem {
		s.lastSystem = chat[0].Text
	}
	s.mu.Unlock()
	if fail {
		return "", errors.New("upstream unavailable")
	}
	switch {
	case strings.Contains(last, "interview questions"):
		return "```json\n[\"Why Go?\", \"Describe a hard bug.\", \"How do you test?\"]\n```", nil
	case strings.Contains(last, "Below is a job description"):
		return `{"company_description": "Acme builds rockets.", "qualifications": "Go", "extra": "dropped"}`, nil
	}
	return "echo: " + last, nil
}

func (s *scriptedLLM) Stream(ctx context.Context, chat []services.ChatMessage, onDelta func(string)) (string, error) {
	reply, err := s.Chat(ctx, chat)
	if err != nil {
		return "", err
	}
	for _, w := range strings.SplitAfter(reply, " ") {
		onDelta(w)
	}
	return reply, nil
}

type testServer struct {
	t      *testing.T
	r      *gin.Engine
	db     *gorm.DB
	llm    *scriptedLLM
	chains *chain.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetRateLimitConfig(time.Second, 1000, 4)
	middleware.SetDuplicateTTL(time.Millisecond)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	files, err := services.NewResumeFileStore(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	llm := &scriptedLLM{}
	reg := chain.NewRegistry(100, time.Hour)
	t.Cleanup(reg.Close)
	chains := chain.NewManager(chain.NewGormStore(db), llm, prompts.Default(), reg, chain.Options{Rehydrate: true})

	r := gin.New()
	RegisterRoutes(r, Deps{DB: db, Chains: chains, LLM: llm, Prompts: prompts.Default(), Files: files})
	return &testServer{t: t, r: r, db: db, llm: llm, chains: chains}
}

func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (s *testServer) login(email string) string {
	s.t.Helper()
	w, _ := s.do(http.MethodPost, "/register", "", gin.H{"first_name": "Ada", "last_name": "L", "email": email, "password": "engines42"})
	if w.Code != http.StatusCreated {
		s.t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	w, out := s.do(http.MethodPost, "/login", "", gin.H{"email": email, "password": "engines42"})
	if w.Code != http.StatusOK {
		s.t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	return out["access_token"].(string)
}

func messagesOf(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var msgs []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode messages: %v (%s)", err, w.Body.String())
	}
	return msgs
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	tok := s.login("ada@example.com")

	if w, _ := s.do(http.MethodPost, "/register", "", gin.H{"first_name": "Ada", "email": "ada@example.com", "password": "engines42"}); w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", w.Code)
	}
	if w, _ := s.do(http.MethodPost, "/register", "", gin.H{"first_name": "Bob", "email": "bob@example.com", "password": "short"}); w.Code != http.StatusBadRequest {
		t.Fatalf("weak password: %d", w.Code)
	}
	if w, _ := s.do(http.MethodPost, "/login", "", gin.H{"email": "ada@example.com", "password": "wrong123"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", w.Code)
	}

	w, out := s.do(http.MethodGet, "/profile", tok, nil)
	if w.Code != http.StatusOK || out["first_name"] != "Ada" {
		t.Fatalf("profile: %d %s", w.Code, w.Body.String())
	}
	if w, _ := s.do(http.MethodGet, "/profile", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("profile without token: %d", w.Code)
	}

	if w, _ := s.do(http.MethodPost, "/logout", tok, nil); w.Code != http.StatusOK {
		t.Fatalf("logout: %d", w.Code)
	}
	if w, _ := s.do(http.MethodGet, "/profile", tok, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token accepted: %d", w.Code)
	}
}

func TestChatTurnsAndHistory(t *testing.T) {
	s := newTestServer(t)
	tok := s.login("chat@example.com")

	w, out := s.do(http.MethodPost, "/gpt-api-call", tok, gin.H{"query": "Hi", "type": "chat"})
	if w.Code != http.StatusOK {
		t.Fatalf("first turn: %d %s", w.Code, w.Body.String())
	}
	chainID, _ := out["chainId"].(string)
	if chainID == "" || out["answer"] != "echo: Hi" {
		t.Fatalf("first turn body: %v", out)
	}

	w, out = s.do(http.MethodPost, "/gpt-api-call", tok, gin.H{"query": "What did I say?", "chainId": chainID})
	if w.Code != http.StatusOK || out["chainId"] != chainID {
		t.Fatalf("second turn: %d %v", w.Code, out)
	}

	w, _ = s.do(http.MethodGet, "/get-messages?chat_id="+chainID, tok, nil)
	msgs := messagesOf(t, w)
	want := []string{"user:Hi", "bot:echo: Hi", "user:What did I say?", "bot:echo: What did I say?"}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %v", msgs)
	}
	for i, m := range msgs {
		if got := m["type"].(string) + ":" + m["message"].(string); got != want[i] {
			t.Errorf("message %d = %q, want %q", i, got, want[i])
		}
	}

	w, out = s.do(http.MethodGet, "/chats", tok, nil)
	if chats, _ := out["chats"].([]any); w.Code != http.StatusOK || len(chats) != 1 {
		t.Fatalf("chats: %d %s", w.Code, w.Body.String())
	}

	// another user cannot read the conversation
	other := s.login("other@example.com")
	w, _ = s.do(http.MethodGet, "/get-messages?chat_id="+chainID, other, nil)
	if msgs := messagesOf(t, w); len(msgs) != 0 {
		t.Fatalf("foreign user read %d messages", len(msgs))
	}
}

func TestChatValidationAndProviderFailure(t *testing.T) {
	s := newTestServer(t)
	tok := s.login("fail@example.com")

	if w, _ := s.do(http.MethodPost, "/gpt-api-call", tok, gin.H{"query": "   "}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank query: %d", w.Code)
	}
	if w, _ := s.do(http.MethodGet, "/get-messages", tok, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing chat_id: %d", w.Code)
	}

	s.llm.setFail(true)
	w, _ := s.do(http.MethodPost, "/gpt-api-call", tok, gin.H{"query": "Is anyone there?"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("provider failure: %d %s", w.Code, w.Body.String())
	}
	var chats, msgs int64
	s.db.Table("chat").Count(&chats)
	s.db.Table("messages").Count(&msgs)
	if chats != 0 || msgs != 0 {
		t.Fatalf("failed turn persisted rows: chats=%d messages=%d", chats, msgs)
	}

	// a failed turn does not count against the duplicate window
	middleware.SetDuplicateTTL(time.Minute)
	s.llm.setFail(false)
	if w, _ := s.do(http.MethodPost, "/gpt-api-call", tok, gin.H{"query": "Is anyone there?"}); w.Code != http.StatusOK {
		t.Fatalf("retry after failure: %d %s", w.Code, w.Body.String())
	}
	if w, _ := s.do(http.MethodPost, "/gpt-api-call", tok, gin.H{"query": "Is anyone there?"}); w.Code != http.StatusTooManyRequests {
		t.Fatalf("duplicate after success: %d", w.Code)
	}
}

func TestDeleteConversationRoute(t *testing.T) {
	s := newTestServer(t)
	tok := s.login("del@example.com")

	_, out := s.do(http.MethodPost, "/gpt-api-call", tok, gin.H{"query": "Hello"})
	chainID := out["chainId"].(string)

	if w, _ := s.do(http.MethodDelete, "/delete-row/chat/"+chainID, tok, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	w, _ := s.do(http.MethodGet, "/get-messages?chat_id="+chainID, tok, nil)
	if w.Code != http.StatusOK || len(messagesOf(t, w)) != 0 {
		t.Fatalf("messages after delete: %d %s", w.Code, w.Body.String())
	}
	if w, _ := s.do(http.MethodDelete, "/delete-row/chat/"+chainID, tok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", w.Code)
	}

	_, out = s.do(http.MethodPost, "/gpt-api-call", tok, gin.H{"query": "Hello again", "chainId": chainID})
	if out["chainId"] == chainID {
		t.Fatalf("deleted id was reused")
	}
}

func uploadResume(t *testing.T, s *testServer, tok, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", filename)
	fw.Write([]byte(content))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload-resume", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func TestResumeJobsAndInterview(t *testing.T) {
	s := newTestServer(t)
	tok := s.login("career@example.com")

	if w := uploadResume(t, s, tok, "cv.pdf", "%PDF"); w.Code != http.StatusBadRequest {
		t.Fatalf("pdf upload: %d", w.Code)
	}
	// no resume yet
	if w, _ := s.do(http.MethodPost, "/generate-interview-questions", tok, gin.H{"type": "Role"}); w.Code != http.StatusBadRequest {
		t.Fatalf("questions without resume: %d", w.Code)
	}

	w := uploadResume(t, s, tok, "cv.txt", "Ada\n\nExperience\nGo at Acme\n\nSkills\nGo, SQL\n")
	if w.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	w, out := s.do(http.MethodGet, "/fetch-experience-data", tok, nil)
	if rows, _ := out["resume"].([]any); w.Code != http.StatusOK || len(rows) != 3 {
		t.Fatalf("experience data: %s", w.Body.String())
	}

	// grounding comes from the stored resume
	_, out = s.do(http.MethodPost, "/gpt-api-call", tok, gin.H{"query": "Summarize me"})
	if out["answer"] != "echo: Summarize me" {
		t.Fatalf("chat with resume: %v", out)
	}

	w, out = s.do(http.MethodPost, "/create-job-application", tok, gin.H{
		"job_title": "Engineer", "company_name": "Acme", "job_description": "Build rockets in Go", "status": "applied",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create job: %d %s", w.Code, w.Body.String())
	}
	appID := int(out["application_id"].(float64))

	w, out = s.do(http.MethodPost, "/get-job-applications", tok, nil)
	apps, _ := out["applications"].([]any)
	if w.Code != http.StatusOK || len(apps) != 1 {
		t.Fatalf("list jobs: %s", w.Body.String())
	}
	sections, _ := apps[0].(map[string]any)["sections"].(map[string]any)
	if sections["company_description"] != "Acme builds rockets." || sections["extra"] != nil {
		t.Fatalf("sections = %v", sections)
	}

	path := "/edit-job-application/" + itoa(appID)
	if w, _ := s.do(http.MethodPut, path, tok, gin.H{"job_title": "Senior Engineer", "company_name": "Acme", "status": "interview"}); w.Code != http.StatusOK {
		t.Fatalf("edit job: %d %s", w.Code, w.Body.String())
	}
	other := s.login("nosy@example.com")
	if w, _ := s.do(http.MethodPut, path, other, gin.H{"job_title": "x", "company_name": "y"}); w.Code != http.StatusNotFound {
		t.Fatalf("foreign edit: %d", w.Code)
	}

	w, out = s.do(http.MethodPost, "/generate-interview-questions", tok, gin.H{"type": "WorkExperience", "job_app_id": appID})
	if w.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", w.Code, w.Body.String())
	}
	qs, _ := out["questions"].([]any)
	if len(qs) != 3 {
		t.Fatalf("questions = %v", qs)
	}
	if _, prompt := s.llm.last(); !strings.Contains(prompt, "Go at Acme") || strings.Contains(prompt, "Go, SQL") {
		t.Fatalf("work experience prompt should carry only experience sections:\n%s", prompt)
	}
	qid := int(qs[0].(map[string]any)["id"].(float64))

	if w, _ := s.do(http.MethodPost, "/save-answer", tok, gin.H{"question_id": qid, "answer": "Because.", "recommendation": "Say more."}); w.Code != http.StatusOK {
		t.Fatalf("save answer: %d", w.Code)
	}
	if w, _ := s.do(http.MethodPost, "/edit-answer", tok, gin.H{"question_id": qid, "answer": "Concurrency."}); w.Code != http.StatusOK {
		t.Fatalf("edit answer: %d", w.Code)
	}
	_, out = s.do(http.MethodPost, "/get-interview-questions", tok, gin.H{"job_app_id": appID})
	first := out["questions"].([]any)[0].(map[string]any)
	if first["answer"] != "Concurrency." || first["recommendation"] != "Say more." {
		t.Fatalf("answered question = %v", first)
	}
	// answered questions ground later chat turns
	if w, _ := s.do(http.MethodPost, "/gpt-api-call", tok, gin.H{"query": "How should I answer?", "type": "help"}); w.Code != http.StatusOK {
		t.Fatalf("help turn: %d", w.Code)
	}
	if system, _ := s.llm.last(); !strings.Contains(system, "Question: Why Go?\nAnswer: Concurrency.") || !strings.Contains(system, "Go at Acme") {
		t.Fatalf("system prompt misses resume or answer:\n%s", system)
	}

	if w, _ := s.do(http.MethodPost, "/delete-interview-question", tok, gin.H{"question_id": qid}); w.Code != http.StatusOK {
		t.Fatalf("delete question: %d", w.Code)
	}
	if w, _ := s.do(http.MethodPost, "/delete-interview-question", tok, gin.H{"question_id": qid}); w.Code != http.StatusNotFound {
		t.Fatalf("delete question twice: %d", w.Code)
	}

	if w, _ := s.do(http.MethodDelete, "/delete-job-application/"+itoa(appID), tok, nil); w.Code != http.StatusOK {
		t.Fatalf("delete job: %d", w.Code)
	}
	_, out = s.do(http.MethodPost, "/get-interview-questions", tok, nil)
	for _, q := range out["questions"].([]any) {
		if q.(map[string]any)["job_app_id"] != nil {
			t.Fatalf("question still linked to deleted job: %v", q)
		}
	}
}

func TestTableBrowser(t *testing.T) {
	s := newTestServer(t)
	tok := s.login("tables@example.com")
	uploadResume(t, s, tok, "cv.md", "Skills\nGo\n")

	w, out := s.do(http.MethodGet, "/get-database-tables", tok, nil)
	tables, _ := out["tables"].([]any)
	if w.Code != http.StatusOK || len(tables) == 0 {
		t.Fatalf("tables: %s", w.Body.String())
	}
	for _, tb := range tables {
		if tb.(map[string]any)["name"] == "users" {
			t.Fatalf("users table exposed")
		}
	}

	if w, _ := s.do(http.MethodGet, "/get-table-data/users", tok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("users table readable: %d", w.Code)
	}
	w, _ = s.do(http.MethodGet, "/get-table-data/resume", tok, nil)
	var rows []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil || len(rows) != 2 {
		t.Fatalf("resume rows: %s", w.Body.String())
	}

	id := int(rows[1]["id"].(float64))
	if w, _ := s.do(http.MethodDelete, "/delete-row/messages/1", tok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("messages deletable: %d", w.Code)
	}
	if w, _ := s.do(http.MethodDelete, "/delete-row/resume/"+itoa(id), tok, nil); w.Code != http.StatusOK {
		t.Fatalf("delete resume row: %d %s", w.Code, w.Body.String())
	}
	if w, _ := s.do(http.MethodDelete, "/delete-row/resume/"+itoa(id), tok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("delete resume row twice: %d", w.Code)
	}
}

func TestWebSocketChat(t *testing.T) {
	s := newTestServer(t)
	tok := s.login("ws@example.com")
	srv := httptest.NewServer(s.r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(gin.H{"type": "start", "query": "stream please"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var (
		streamed strings.Builder
		done     map[string]any
	)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for done == nil {
		var ev map[string]any
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch ev["type"] {
		case "delta":
			streamed.WriteString(ev["data"].(string))
		case "done":
			done = ev
		default:
			t.Fatalf("unexpected event %v", ev)
		}
	}
	if done["answer"] != "echo: stream please" || streamed.String() != done["answer"] {
		t.Fatalf("streamed %q, done %v", streamed.String(), done)
	}
	chainID, _ := done["chainId"].(string)
	turns, err := s.chains.ListTurns(context.Background(), 1, chainID)
	if err != nil || len(turns) != 2 {
		t.Fatalf("persisted turns = %v, %v", turns, err)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(http.MethodGet, "/ws/chat?token=nope", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", w.Code)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
