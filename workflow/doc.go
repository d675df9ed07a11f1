// Package workflow assembles and executes multi-step workflows over the
// capability fabric: a workflow names the capabilities it needs, each
// required capability becomes one step, and execution dispatches each
// step to the best available agent in turn, fanning out to dependents
// as their prerequisite steps complete.
package workflow
