package automod

import (
	"github.com/mychatmanager/chatmod/automod/engine"
	"github.com/mychatmanager/chatmod/automod/model"
	"github.com/mychatmanager/chatmod/automod/pipeline"
)

type Engine = engine.Engine
type Coordinator = pipeline.Coordinator
type Result = pipeline.Result
type Route = pipeline.Route

type MessageEvent = model.MessageEvent
type ChatPolicy = model.ChatPolicy
type Verdict = model.Verdict
type Action = model.Action
type Event = model.Event

var (
	ActionNone = model.ActionNone
	ActionWarn = model.ActionWarn
	ActionMute = model.ActionMute
	ActionKick = model.ActionKick
	ActionBan  = model.ActionBan
)

var (
	DefaultPolicy  = model.DefaultPolicy
	NewCoordinator = pipeline.NewCoordinator
)
