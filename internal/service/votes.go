package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"linkfeed/internal/domain"
	"linkfeed/internal/storage"
)

// VoteType is the direction of a vote.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

var (
	// ErrInvalidVote is returned for an unknown vote type.
	ErrInvalidVote = errors.New("invalid vote type")
	// ErrEmptyComment is returned for empty or whitespace-only comment text.
	ErrEmptyComment = errors.New("comment text is empty")
)

// VoteService applies vote toggles and appends comments to persisted
// feed items, dispatching to the link or article collection.
type VoteService struct {
	repo storage.Repository
	now  func() time.Time
	log  logrus.FieldLogger
}

// NewVoteService creates a VoteService over the given store.
func NewVoteService(repo storage.Repository, logger logrus.FieldLogger) *VoteService {
	return &VoteService{
		repo: repo,
		now:  time.Now,
		log:  logger.WithField("component", "vote_service"),
	}
}

// Vote applies one vote transition for (item, user): a first vote
// records it, voting the same direction again retracts it, and voting
// the opposite direction switches sides in a single transition. The
// updated vote state is returned so callers can reconcile optimistic
// UI state.
func (s *VoteService) Vote(ctx context.Context, itemID string, voteType VoteType, isArticle bool, userID string) (*domain.Votes, error) {
	if voteType != VoteUp && voteType != VoteDown {
		return nil, ErrInvalidVote
	}

	if isArticle {
		article, err := s.repo.FindArticleByID(ctx, itemID)
		if err != nil {
			return nil, err
		}
		applyVote(&article.Votes, userID, voteType)
		if err := s.repo.UpdateArticle(ctx, *article); err != nil {
			return nil, err
		}
		return &article.Votes, nil
	}

	link, err := s.repo.FindLinkByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	applyVote(&link.Votes, userID, voteType)
	if err := s.repo.UpdateLink(ctx, *link); err != nil {
		return nil, err
	}
	return &link.Votes, nil
}

// Comment appends a comment to a persisted item. Empty or
// whitespace-only text is rejected; there are no edit or delete
// operations.
func (s *VoteService) Comment(ctx context.Context, itemID, user, text string, isArticle bool) (*domain.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyComment
	}

	now := s.now()
	comment := domain.Comment{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		User:      user,
		Text:      text,
		Timestamp: now,
	}

	if isArticle {
		article, err := s.repo.FindArticleByID(ctx, itemID)
		if err != nil {
			return nil, err
		}
		article.Comments = append(article.Comments, comment)
		if err := s.repo.UpdateArticle(ctx, *article); err != nil {
			return nil, err
		}
		return &comment, nil
	}

	link, err := s.repo.FindLinkByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	link.Comments = append(link.Comments, comment)
	if err := s.repo.UpdateLink(ctx, *link); err != nil {
		return nil, err
	}
	return &comment, nil
}

// applyVote runs the toggle state machine over the vote state. After
// every transition the user sits in at most one voter set; the counts
// are recomputed from the set sizes, which keeps them non-negative and
// in lockstep by construction.
func applyVote(v *domain.Votes, userID string, voteType VoteType) {
	wasUp, wasDown := v.HasVoted(userID)

	v.UpVoters = removeVoter(v.UpVoters, userID)
	v.DownVoters = removeVoter(v.DownVoters, userID)

	switch voteType {
	case VoteUp:
		if !wasUp {
			v.UpVoters = append(v.UpVoters, userID)
		}
	case VoteDown:
		if !wasDown {
			v.DownVoters = append(v.DownVoters, userID)
		}
	}

	v.Up = len(v.UpVoters)
	v.Down = len(v.DownVoters)
}

func removeVoter(voters []string, userID string) []string {
	out := voters[:0]
	for _, id := range voters {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}
