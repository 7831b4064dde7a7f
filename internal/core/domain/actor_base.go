package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorRef keeps domain messages decoupled from the runtime's PID type.
type ActorRef actor.PID

// ActorRequestMixIn is embedded by every request in the actor message
// catalogue. ReplyToRef is optional: when set, the response bypasses
// the routing actor and goes straight to that ref; when nil it goes
// back to the mailbox sender.
type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

// ActorResponseMixIn carries the operation error, which the HTTP layer
// maps to a status code. A zero value means success.
type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}
