package models

import "time"

type VoteType string

const (
	Upvote   VoteType = "upvote"
	Downvote VoteType = "downvote"
)

func (t VoteType) Valid() bool {
	return t == Upvote || t == Downvote
}

// Delta is the change a single vote of this type applies to a vote count.
func (t VoteType) Delta() int {
	if t == Upvote {
		return 1
	}
	return -1
}

type Tag struct {
	ID   string
	Name string
}

type Question struct {
	ID          string
	Title       string
	Slug        string
	Description string
	PublishedBy string
	TagIDs      []string
	VoteCount   int
	ViewCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// QuestionView is the read projection of a question joined with its tags
// and publisher.
type QuestionView struct {
	ID          string
	Title       string
	Slug        string
	Description string
	Publisher   Publisher
	Tags        []Tag
	VoteCount   int
	ViewCount   int
	CreatedAt   time.Time
}

type Publisher struct {
	ID               string
	EnrollmentNumber string
}

type Answer struct {
	ID         string
	Body       string
	AnsweredBy string
	QuestionID string
	VoteCount  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VoteTarget identifies what a vote is cast on. Exactly one of the fields
// is set.
type VoteTarget struct {
	QuestionID string
	AnswerID   string
}

type Vote struct {
	UserID    string
	Target    VoteTarget
	Type      VoteType
	CreatedAt time.Time
}
