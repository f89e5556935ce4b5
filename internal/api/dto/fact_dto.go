package dto

// CloudMembershipRequest payload for PATCH /users/:id/cloud-membership.
type CloudMembershipRequest struct {
	IsCloudMember *bool  `json:"isCloudMember"`
	CloudID       string `json:"cloudId"`
}

// AwardBadgeRequest payload for POST /users/:id/badges/award.
type AwardBadgeRequest struct {
	BadgeName string `json:"badgeName"`
	Reason    string `json:"reason"`
}

// KYCRequest payload for POST /users/:id/kyc.
type KYCRequest struct {
	IDDocument string `json:"idDocument"`
}

// AddCertificationRequest payload for POST /users/:id/certifications.
type AddCertificationRequest struct {
	Title     string `json:"title"`
	Issuer    string `json:"issuer"`
	IssuerRef string `json:"issuerRef"`
}

// StatusRequest carries a target status.
type StatusRequest struct {
	Status string `json:"status"`
}

// TaxFormRequest payload for POST /users/:id/tax-form.
type TaxFormRequest struct {
	FormType  string `json:"formType"`
	LegalName string `json:"legalName"`
	Country   string `json:"country"`
}

// SubscriptionRequest payload for POST /users/:id/subscription.
type SubscriptionRequest struct {
	PlanID string `json:"planId"`
}

// InsuranceRequest payload for POST /users/:id/insurance. Active defaults to true.
type InsuranceRequest struct {
	PolicyID string `json:"policyId"`
	Active   *bool  `json:"active"`
}

// JobSuccessRequest payload for PATCH /users/:id/job-success.
type JobSuccessRequest struct {
	Score *int `json:"score"`
}

// ProfileCompletionRequest payload for PATCH /users/:id/profile-completion.
type ProfileCompletionRequest struct {
	Percentage *int `json:"percentage"`
}

// CreateReferralRequest payload for POST /referrals.
type CreateReferralRequest struct {
	ReferrerID string `json:"referrerId"`
	RefereeID  string `json:"refereeId"`
}
