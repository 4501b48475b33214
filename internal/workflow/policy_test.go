package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRoleGating(t *testing.T) {
	cases := []struct {
		name    string
		in      TransitionInput
		wantErr error
	}{
		{
			name: "customer cancels own pending appointment",
			in:   TransitionInput{Current: StatusPending, Target: StatusCancelled, ActorRole: RoleCustomer, IsOwner: true},
		},
		{
			name:    "customer cannot cancel someone else's appointment",
			in:      TransitionInput{Current: StatusPending, Target: StatusCancelled, ActorRole: RoleCustomer, IsOwner: false},
			wantErr: ErrTransitionNotAllowed,
		},
		{
			name:    "customer cannot confirm",
			in:      TransitionInput{Current: StatusPending, Target: StatusConfirmed, ActorRole: RoleCustomer, IsOwner: true},
			wantErr: ErrTransitionNotAllowed,
		},
		{
			name: "assigned technician starts work",
			in:   TransitionInput{Current: StatusReceptionApproved, Target: StatusInProgress, ActorRole: RoleTechnician, IsAssignedTech: true},
		},
		{
			name:    "unassigned technician cannot start work",
			in:      TransitionInput{Current: StatusReceptionApproved, Target: StatusInProgress, ActorRole: RoleTechnician, IsAssignedTech: false},
			wantErr: ErrTransitionNotAllowed,
		},
		{
			name: "any technician may report insufficient parts",
			in:   TransitionInput{Current: StatusReceptionCreated, Target: StatusPartsInsufficient, ActorRole: RoleTechnician, IsAssignedTech: false},
		},
		{
			name: "any technician may complete in-progress work",
			in:   TransitionInput{Current: StatusInProgress, Target: StatusCompleted, ActorRole: RoleTechnician, IsAssignedTech: false},
		},
		{
			name:    "technician cannot invoice",
			in:      TransitionInput{Current: StatusCompleted, Target: StatusInvoiced, ActorRole: RoleTechnician, IsAssignedTech: true},
			wantErr: ErrTransitionNotAllowed,
		},
		{
			name: "staff confirms booking",
			in:   TransitionInput{Current: StatusPending, Target: StatusConfirmed, ActorRole: RoleStaff},
		},
		{
			name: "admin has staff capabilities",
			in:   TransitionInput{Current: StatusPending, Target: StatusNoShow, ActorRole: RoleAdmin},
		},
		{
			name:    "unknown role is rejected",
			in:      TransitionInput{Current: StatusPending, Target: StatusConfirmed, ActorRole: "AUDITOR"},
			wantErr: ErrTransitionNotAllowed,
		},
		{
			name:    "adjacency is checked before role",
			in:      TransitionInput{Current: StatusPending, Target: StatusInvoiced, ActorRole: RoleAdmin},
			wantErr: ErrTransitionNotAllowed,
		},
		{
			name:    "unknown target status fails validation",
			in:      TransitionInput{Current: StatusPending, Target: "warp_drive", ActorRole: RoleStaff},
			wantErr: ErrValidation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.in)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestValidatePreconditions(t *testing.T) {
	// Approving a reception from reception_created requires a linked
	// reception record.
	err := Validate(TransitionInput{
		Current: StatusReceptionCreated, Target: StatusReceptionApproved,
		ActorRole: RoleStaff, HasReception: false,
	})
	assert.ErrorIs(t, err, ErrPreconditionNotMet)

	assert.NoError(t, Validate(TransitionInput{
		Current: StatusReceptionCreated, Target: StatusReceptionApproved,
		ActorRole: RoleStaff, HasReception: true,
	}))

	// Resuming from a parts hold does not re-require the link check.
	assert.NoError(t, Validate(TransitionInput{
		Current: StatusWaitingForParts, Target: StatusReceptionApproved,
		ActorRole: RoleStaff,
	}))

	// Invoicing works from completed and from reception_approved
	// (pre-payment), nowhere else.
	assert.NoError(t, Validate(TransitionInput{
		Current: StatusCompleted, Target: StatusInvoiced, ActorRole: RoleStaff,
	}))
	assert.NoError(t, Validate(TransitionInput{
		Current: StatusReceptionApproved, Target: StatusInvoiced, ActorRole: RoleStaff, HasReception: true,
	}))
}
