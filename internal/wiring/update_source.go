package wiring

import (
	"context"

	"github.com/hattiebot/hattiebot/internal/selfupdate"
	"github.com/hattiebot/hattiebot/internal/wsgateway"
)

// UpdateSource adapts internal/selfupdate's throttled checker to
// wsgateway's system.check_update method.
type UpdateSource struct {
	Checker *selfupdate.Checker
}

func (u UpdateSource) CheckUpdate(ctx context.Context) (wsgateway.UpdateStatus, error) {
	if u.Checker == nil || u.Checker.ReleasesAPIURL == "" {
		return wsgateway.UpdateStatus{CurrentVersion: u.currentVersion()}, nil
	}
	st, err := u.Checker.CheckIfDue(ctx)
	if err != nil {
		return wsgateway.UpdateStatus{}, err
	}
	if st == nil {
		return wsgateway.UpdateStatus{CurrentVersion: u.currentVersion()}, nil
	}
	return wsgateway.UpdateStatus{
		UpdateAvailable: st.UpdateAvailable,
		CurrentVersion:  st.CurrentVersion,
		LatestVersion:   st.LatestVersion,
		ReleaseURL:      st.ReleaseURL,
	}, nil
}

func (u UpdateSource) currentVersion() string {
	if u.Checker == nil {
		return ""
	}
	return u.Checker.CurrentVersion
}
