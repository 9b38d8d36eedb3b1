package launch

import "errors"

var (
	ErrInvalidDate     = errors.New("date must be YYYY-MM-DD")
	ErrToolNotFound    = errors.New("tool not found")
	ErrToolNotApproved = errors.New("tool is not approved")
	ErrNotOwner        = errors.New("only the tool owner can do that")
	ErrAlreadyBooked   = errors.New("tool already has an active launch booking")
	ErrNotBooked       = errors.New("tool has no active launch booking")
	ErrDateTooSoon     = errors.New("launch date is too soon for this tier")
	ErrSlotFull        = errors.New("launch day is full")
	ErrSlotNotFound    = errors.New("launch day not found")
	ErrSlotFinalized   = errors.New("launch day is finalized")
	ErrCancelTooLate   = errors.New("launch day has already started")
	ErrNotLaunchDay    = errors.New("tool is not launching today")
	ErrVotingClosed    = errors.New("voting is closed for this day")
	ErrSelfVote        = errors.New("cannot vote for your own tool")
	ErrAlreadyVoted    = errors.New("already voted for this tool today")
	ErrVoteNotFound    = errors.New("no vote to retract")
	ErrDayNotOver      = errors.New("launch day has not ended yet")
	ErrBackupNotFound  = errors.New("backup not found")
)
