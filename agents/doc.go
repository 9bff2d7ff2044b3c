// Copyright (c) Microsoft. All rights reserved.

// Package agents runs request/response exchanges against a remote agent
// service whose agents can call MCP servers.
//
// Each exchange acquires an ephemeral remote agent and thread, sends one user
// message, waits for the run to finish, and releases the remote resources:
//
//	mgr := agents.NewManager(svc,
//	    agents.WithModel("gpt-4o"),
//	    agents.WithTools(agents.NewMCPTool("mslearn", "https://learn.microsoft.com/api/mcp")),
//	)
//
//	h, err := mgr.BeginExchange(ctx, conversationID, history)
//	if err != nil {
//	    return err
//	}
//	defer mgr.EndExchange(ctx, h)
//
//	res, err := mgr.SendTurn(ctx, h, "What is MCP?")
//
// [Manager.Exchange] wraps the three calls and always releases the handle.
//
// # Handles
//
// A [Handle] moves through the states
//
//	Idle -> AgentAcquired -> {ToolPending -> ToolApproved|ToolDenied}* -> ResponseReady -> Released
//
// with Failed reachable from Idle and from any mid-exchange state. Released
// is terminal. At most one handle per conversation is live at a time, and at
// most one SendTurn runs on a handle.
//
// # Tool approval
//
// Tools configured with [ApprovalAlways] pause the remote run until the
// configured [Approver] decides. The wait is bounded by the approval timeout;
// exceeding it fails the exchange with [ErrToolApprovalTimeout].
//
// # Errors
//
// Failures are returned as errors wrapping one of [ErrAgentCreationFailed],
// [ErrTransportFailure], [ErrRunFailed], [ErrToolApprovalTimeout] or
// [ErrExchangeInProgress]. SendTurn returns the partial [TurnResult] along
// with the error, so tool invocations completed before a failure are kept.
// Nothing is retried.
package agents
