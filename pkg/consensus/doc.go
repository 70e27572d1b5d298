// Package consensus runs the team discussion that turns several members'
// proposals into one joint target.
//
// Members speak one after another in a seeded order and each sees every
// earlier proposal. A round ends in agreement when its most proposed legal
// target is unique and reaches the Quorum. After MaxRounds rounds without
// agreement the target is drawn at random from the legal targets, which is
// a normal Outcome with Reached set to false.
//
// The caller applies the outcome by declaring Outcome.Target for every
// member, so the team always acts coherently.
package consensus
