// Package scheduler is the run loop that ties every other scheduling
// component together: it pulls tests off the governor's ready queue as
// capacity allows, hands each admitted test to an AttemptRunner, feeds
// outcomes through the retry policy, and publishes a totally-ordered
// event for every state transition.
package scheduler
