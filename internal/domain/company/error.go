package company

import "errors"

var (
	ErrProAccountNotFound = errors.New("pro account not found")
	ErrProAccountExists   = errors.New("pro account already exists")
	ErrLinkNotFound       = errors.New("link not found")
	ErrLinkExists         = errors.New("user is already linked or invited")
	ErrLinkNotActive      = errors.New("link is not active")
	ErrSelfLink           = errors.New("cannot link own account")
	ErrInvalidToken       = errors.New("invalid or used invitation token")
	ErrEmailMismatch      = errors.New("invitation was sent to another e-mail")
	ErrLicenseNotFound    = errors.New("license not found")
	ErrLicenseUnavailable = errors.New("license is already assigned")
	ErrLinkHasLicense     = errors.New("link already has a license")
	ErrTripsNotShared     = errors.New("trips are not shared by this user")
	ErrInvalidInput       = errors.New("invalid input")
)
