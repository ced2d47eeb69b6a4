package domain

// Category identifies what kind of event a notification or subscription is about.
type Category string

const (
	CategoryNewThread        Category = "new-thread-creation"
	CategoryNewComment       Category = "new-comment-creation"
	CategoryNewMention       Category = "new-mention"
	CategoryNewCollaboration Category = "new-collaboration"
	CategoryNewReaction      Category = "new-reaction"
	CategoryChainEvent       Category = "chain-event"
	CategorySnapshotProposal Category = "snapshot-proposal"
	CategoryThreadEdit       Category = "thread-edit"
	CategoryCommentEdit      Category = "comment-edit"
)

// AllCategories lists every known category in a stable order.
var AllCategories = []Category{
	CategoryNewThread,
	CategoryNewComment,
	CategoryNewMention,
	CategoryNewCollaboration,
	CategoryNewReaction,
	CategoryChainEvent,
	CategorySnapshotProposal,
	CategoryThreadEdit,
	CategoryCommentEdit,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// IsForum reports whether notifications of this category carry a PostData payload.
func (c Category) IsForum() bool {
	switch c {
	case CategoryNewThread, CategoryNewComment, CategoryNewMention,
		CategoryNewCollaboration, CategoryNewReaction,
		CategoryThreadEdit, CategoryCommentEdit:
		return true
	}
	return false
}

// InDigest reports whether notifications of this category are summarised in
// daily/weekly digest emails. Edits and snapshot proposals never are.
func (c Category) InDigest() bool {
	switch c {
	case CategoryThreadEdit, CategoryCommentEdit, CategorySnapshotProposal:
		return false
	}
	return c.Valid()
}

// DigestExcludedCategories is the SQL-side form of InDigest.
func DigestExcludedCategories() []string {
	return []string{
		string(CategoryThreadEdit),
		string(CategoryCommentEdit),
		string(CategorySnapshotProposal),
	}
}

// EmailInterval is how often a user wants batched digest emails.
type EmailInterval string

const (
	IntervalNever  EmailInterval = "never"
	IntervalDaily  EmailInterval = "daily"
	IntervalWeekly EmailInterval = "weekly"
)

func (i EmailInterval) Valid() bool {
	return i == IntervalNever || i == IntervalDaily || i == IntervalWeekly
}
