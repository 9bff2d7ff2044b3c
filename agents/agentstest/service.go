// Copyright (c) Microsoft. All rights reserved.

// Package agentstest provides a scripted in-process [agents.Service] for
// tests.
//
// Each CreateRun consumes the next queued [Script]; each GetRun advances the
// run by one [Event]:
//
//	svc := agentstest.New()
//	svc.Queue(agentstest.Script{
//	    Events: []agentstest.Event{
//	        {Status: agents.RunInProgress, Steps: []agents.RunStep{agentstest.ToolStep("s1", agentstest.MCPCall("c1", "mslearn", "search"))}},
//	        {Status: agents.RunCompleted},
//	    },
//	    Reply: "MCP is a protocol.",
//	})
package agentstest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/convergent-analytics-ai-01/UWEPD/agents"
	"github.com/convergent-analytics-ai-01/UWEPD/conversation"
)

// Script describes how one run evolves.
type Script struct {
	Events []Event

	// Reply is posted as an assistant message when the run completes.
	Reply string
}

// Event is applied by one GetRun call.
type Event struct {
	Status    agents.RunStatus
	Steps     []agents.RunStep
	Pending   []agents.PendingApproval
	LastError *agents.LastError

	// Err makes GetRun fail without changing the run.
	Err error

	// Wait blocks GetRun until it is closed or the context is done.
	Wait <-chan struct{}
}

// Reply returns a script whose run completes on the first poll.
func Reply(text string) Script {
	return Script{Events: []Event{{Status: agents.RunCompleted}}, Reply: text}
}

// ToolStep returns a completed tool-call step.
func ToolStep(id string, calls ...agents.StepToolCall) agents.RunStep {
	return agents.RunStep{ID: id, Status: "completed", ToolCalls: calls}
}

// MCPCall returns an MCP tool call with empty arguments.
func MCPCall(id, label, name string) agents.StepToolCall {
	return agents.StepToolCall{
		ID:          id,
		Type:        "mcp",
		ServerLabel: label,
		Name:        name,
		Arguments:   []byte(`{}`),
		Output:      []byte(`"ok"`),
	}
}

type thread struct {
	messages []agents.ThreadMessage
}

type run struct {
	id       string
	threadID string
	script   Script
	pos      int
	status   agents.RunStatus
	steps    []agents.RunStep
	pending  []agents.PendingApproval
	lastErr  *agents.LastError
	replied  bool
	tools    []agents.ToolConfig
}

// Service is a goroutine-safe scripted [agents.Service].
type Service struct {
	mu       sync.Mutex
	seq      int
	scripts  []Script
	failures map[string]error

	agentDefs map[string]agents.AgentDefinition
	threads   map[string]*thread
	runs      map[string]*run

	deletedAgents  []string
	deletedThreads []string
	cancelled      []string
	approvals      []agents.ToolApproval
	calls          []string
}

var _ agents.Service = (*Service)(nil)

// New creates an empty Service.
func New() *Service {
	return &Service{
		failures:  make(map[string]error),
		agentDefs: make(map[string]agents.AgentDefinition),
		threads:   make(map[string]*thread),
		runs:      make(map[string]*run),
	}
}

// Queue appends scripts consumed by subsequent CreateRun calls. Runs
// created with an empty queue complete with no reply.
func (s *Service) Queue(scripts ...Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, scripts...)
}

// Fail makes every call to op (a method name such as "CreateAgent") return
// err. A nil err clears the failure.
func (s *Service) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns the method names invoked so far, in order.
func (s *Service) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// LiveAgents returns the number of agents created and not deleted.
func (s *Service) LiveAgents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.agentDefs)
}

// LiveThreads returns the number of threads created and not deleted.
func (s *Service) LiveThreads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads)
}

// DeletedAgents returns deleted agent ids in order.
func (s *Service) DeletedAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deletedAgents)
}

// DeletedThreads returns deleted thread ids in order.
func (s *Service) DeletedThreads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deletedThreads)
}

// Cancelled returns the ids of runs cancelled through CancelRun.
func (s *Service) Cancelled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cancelled)
}

// Approvals returns every submitted approval in order.
func (s *Service) Approvals() []agents.ToolApproval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.approvals)
}

// Agent returns the definition of a live agent.
func (s *Service) Agent(id string) (agents.AgentDefinition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.agentDefs[id]
	return def, ok
}

// Messages returns a live thread's messages oldest first.
func (s *Service) Messages(threadID string) []agents.ThreadMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil
	}
	return slices.Clone(t.messages)
}

// RunTools returns the tool settings passed to CreateRun for runID.
func (s *Service) RunTools(runID string) []agents.ToolConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[runID]; ok {
		return slices.Clone(r.tools)
	}
	return nil
}

// enter records the call and returns the injected failure, if any.
// Callers hold s.mu.
func (s *Service) enter(op string) error {
	s.calls = append(s.calls, op)
	return s.failures[op]
}

func (s *Service) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

func (s *Service) CreateAgent(ctx context.Context, def agents.AgentDefinition) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateAgent"); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := s.nextID("asst")
	def.Tools = slices.Clone(def.Tools)
	s.agentDefs[id] = def
	return id, nil
}

func (s *Service) DeleteAgent(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteAgent"); err != nil {
		return err
	}
	if _, ok := s.agentDefs[agentID]; !ok {
		return fmt.Errorf("agent %s not found", agentID)
	}
	delete(s.agentDefs, agentID)
	s.deletedAgents = append(s.deletedAgents, agentID)
	return nil
}

func (s *Service) CreateThread(ctx context.Context, seed []agents.ThreadMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateThread"); err != nil {
		return "", err
	}
	id := s.nextID("thread")
	t := &thread{}
	for _, m := range seed {
		m.ID = s.nextID("msg")
		t.messages = append(t.messages, m)
	}
	s.threads[id] = t
	return id, nil
}

func (s *Service) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteThread"); err != nil {
		return err
	}
	if _, ok := s.threads[threadID]; !ok {
		return fmt.Errorf("thread %s not found", threadID)
	}
	delete(s.threads, threadID)
	s.deletedThreads = append(s.deletedThreads, threadID)
	return nil
}

func (s *Service) CreateMessage(ctx context.Context, threadID string, msg agents.ThreadMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateMessage"); err != nil {
		return "", err
	}
	t, ok := s.threads[threadID]
	if !ok {
		return "", fmt.Errorf("thread %s not found", threadID)
	}
	msg.ID = s.nextID("msg")
	t.messages = append(t.messages, msg)
	return msg.ID, nil
}

func (s *Service) ListMessages(ctx context.Context, threadID string) ([]agents.ThreadMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListMessages"); err != nil {
		return nil, err
	}
	t, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	out := slices.Clone(t.messages)
	slices.Reverse(out)
	return out, nil
}

func (s *Service) CreateRun(ctx context.Context, threadID, agentID string, tools []agents.ToolConfig) (*agents.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateRun"); err != nil {
		return nil, err
	}
	if _, ok := s.threads[threadID]; !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	if _, ok := s.agentDefs[agentID]; !ok {
		return nil, fmt.Errorf("agent %s not found", agentID)
	}
	script := Script{Events: []Event{{Status: agents.RunCompleted}}}
	if len(s.scripts) > 0 {
		script = s.scripts[0]
		s.scripts = s.scripts[1:]
	}
	r := &run{
		id:       s.nextID("run"),
		threadID: threadID,
		script:   script,
		status:   agents.RunQueued,
		tools:    slices.Clone(tools),
	}
	s.runs[r.id] = r
	return r.snapshot(), nil
}

func (s *Service) GetRun(ctx context.Context, threadID, runID string) (*agents.Run, error) {
	s.mu.Lock()
	if err := s.enter("GetRun"); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	r, ok := s.runs[runID]
	if !ok || r.threadID != threadID {
		s.mu.Unlock()
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if r.pos >= len(r.script.Events) {
		defer s.mu.Unlock()
		return r.snapshot(), nil
	}
	ev := r.script.Events[r.pos]
	r.pos++
	s.mu.Unlock()

	if ev.Wait != nil {
		select {
		case <-ev.Wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if ev.Err != nil {
		return nil, ev.Err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r.status.Terminal() {
		return r.snapshot(), nil
	}
	r.status = ev.Status
	r.steps = append(r.steps, ev.Steps...)
	r.pending = slices.Clone(ev.Pending)
	r.lastErr = ev.LastError
	if r.status == agents.RunCompleted && !r.replied && r.script.Reply != "" {
		r.replied = true
		if t, ok := s.threads[threadID]; ok {
			t.messages = append(t.messages, agents.ThreadMessage{
				ID:   s.nextID("msg"),
				Role: conversation.RoleAssistant,
				Text: r.script.Reply,
			})
		}
	}
	return r.snapshot(), nil
}

func (s *Service) CancelRun(ctx context.Context, threadID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CancelRun"); err != nil {
		return err
	}
	r, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	s.cancelled = append(s.cancelled, runID)
	if !r.status.Terminal() {
		r.status = agents.RunCancelled
	}
	return nil
}

func (s *Service) SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []agents.ToolApproval) (*agents.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SubmitToolApprovals"); err != nil {
		return nil, err
	}
	r, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if r.status != agents.RunRequiresAction {
		return nil, fmt.Errorf("run %s is %s", runID, r.status)
	}
	s.approvals = append(s.approvals, approvals...)
	r.pending = nil
	r.status = agents.RunInProgress
	return r.snapshot(), nil
}

func (s *Service) ListRunSteps(ctx context.Context, threadID, runID string) ([]agents.RunStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListRunSteps"); err != nil {
		return nil, err
	}
	r, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return slices.Clone(r.steps), nil
}

func (r *run) snapshot() *agents.Run {
	return &agents.Run{
		ID:               r.id,
		ThreadID:         r.threadID,
		Status:           r.status,
		PendingApprovals: slices.Clone(r.pending),
		LastError:        r.lastErr,
	}
}
