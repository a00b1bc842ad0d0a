// Package statemachine implements hierarchical state machines driven by outcomes.
//
// A State declares a closed set of outcome labels and, when executed against a
// shared Blackboard, returns exactly one of them. A StateMachine owns named
// child states, each with an optional table translating the child's outcomes.
// Executing the machine runs the start state, translates its outcome, and then
// either returns it (when it is one of the machine's own outcomes) or runs the
// state of that name. StateMachine is itself a State, so machines nest to any
// depth.
//
// Graph errors are not detected ahead of time: an undeclared outcome or an
// outcome with no transition fails the execution that produces it. Validate
// can be called explicitly to check a graph before running it.
//
// Only one state of a machine runs at a time. CurrentState and Cancel may be
// called from other goroutines while Execute runs; cancellation is cooperative
// and is forwarded to the active child.
package statemachine
