// Package consensus holds the pure completion and summary rules for a
// voting round. It has no storage or transport dependencies so the round
// controller and the snapshot builder share identical arithmetic.
package consensus

import (
	"math"

	"github.com/pointdeck/estimation-server-go/internal/model"
)

// AllVoted reports whether a task has collected enough votes to be
// considered complete: at least one participant is online and the raw vote
// count meets the online-participant count. Raw rows are compared, not
// distinct online voters, so a stale vote from a participant who went
// offline still counts toward the threshold.
func AllVoted(voteCount, onlineParticipants int) bool {
	return onlineParticipants > 0 && voteCount >= onlineParticipants
}

// Average returns the arithmetic mean of the numeric estimates, rounded to
// one decimal place. Unknown ("?") votes are excluded; if every vote is
// unknown the average is 0.
func Average(estimates []model.Estimate) float64 {
	sum := 0
	count := 0
	for _, e := range estimates {
		if e.IsUnknown() {
			continue
		}
		sum += int(e)
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(count)*10) / 10
}
