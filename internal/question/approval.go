package question

import "context"

// applyApproval moves q between pending and approved. Approving requires
// approvedBy to resolve to a user; on failure q is left untouched.
// Unapproving always clears approvedBy.
func (s *Service) applyApproval(ctx context.Context, q *Question, approve bool, approvedBy string) error {
	if !approve {
		q.IsApproved = false
		q.ApprovedBy = nil
		return nil
	}
	id, err := s.resolver.ResolveUser(ctx, approvedBy)
	if err != nil {
		return err
	}
	if id == nil {
		return ErrInvalidApprover
	}
	q.IsApproved = true
	q.ApprovedBy = id
	return nil
}
