package entity

import "errors"

var (
	// Agent errors
	ErrInvalidAgentID      = errors.New("invalid agent id")
	ErrInvalidAgentName    = errors.New("invalid agent name")
	ErrSkillAlreadyExists  = errors.New("skill already exists")
	ErrSkillNotFound       = errors.New("skill not found")

	// Message errors
	ErrInvalidMessageID      = errors.New("invalid message id")
	ErrInvalidMessageKind    = errors.New("invalid message kind")
	ErrInvalidConversationID = errors.New("invalid conversation id")

	// Workflow errors
	ErrInvalidWorkflowSpec = errors.New("invalid workflow spec")
	ErrCyclicWorkflow      = errors.New("workflow graph contains a cycle")
	ErrDanglingEdge        = errors.New("workflow edge references an unknown node")

	// Session errors
	ErrInvalidSessionID = errors.New("invalid session id")

	// Skill errors
	ErrInvalidSkillID   = errors.New("invalid skill id")
	ErrInvalidSkillName = errors.New("invalid skill name")

	// Conversation errors
	ErrInvalidChannelID = errors.New("invalid channel id")
)
