package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pfagent/internal/domain"
	apperrors "pfagent/internal/errors"
	"pfagent/internal/services"
)

// healthyDaysThreshold is the remaining lifetime above which replacing a
// cached license requires confirmation.
const healthyDaysThreshold = 90

// applyCmd returns the command that pushes a license file to an instance.
func applyCmd() *cobra.Command {
	var (
		instanceID string
		filePath   string
		actor      string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a license file to an instance",
		Long: `Apply uploads a license file to an instance's admin API, then re-reads
the instance to confirm what is actually active.

Before anything is sent, the file's expiry is checked: an already expired
license is always rejected, and a license expiring within 30 days or one
replacing a license that still has more than 90 days left asks for
confirmation. --force skips the confirmations, never the rejection.

Examples:
  pf-agent apply --instance pf-prod-1 --file ./pingfederate.lic
  pf-agent apply --instance pf-prod-1 --file ./pingfederate.lic --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instanceID == "" {
				return fmt.Errorf("--instance is required")
			}
			if filePath == "" {
				return fmt.Errorf("--file is required")
			}

			return withPipeline(cmd.Context(), func(service *services.LicenseService) error {
				check := preflight{
					service: service,
					force:   force,
					now:     time.Now().UTC(),
					ask:     confirm,
				}
				if err := check.run(cmd.Context(), instanceID, filePath); err != nil {
					return err
				}

				summary, err := service.ApplyLicense(cmd.Context(), instanceID, filePath, actor)
				if err != nil {
					return err
				}
				fmt.Printf("Applied. %s: %s (expires %s, %d days)\n",
					summary.InstanceID, summary.Status, summary.ExpiryDate, summary.DaysToExpiry)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&instanceID, "instance", "i", "", "Target instance (required)")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "License file to apply (required)")
	cmd.Flags().StringVarP(&actor, "actor", "a", "cli", "Actor recorded in the audit trail")
	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompts")
	return cmd
}

// preflight inspects the license file and the cached state before any
// network call. An expired file is rejected outright; force skips the
// confirmation prompts but never that rejection.
type preflight struct {
	service *services.LicenseService
	force   bool
	now     time.Time
	ask     func(prompt string) bool
}

func (p preflight) run(ctx context.Context, instanceID, filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("cannot read license file: %w", err)
	}

	rawExpiry, found := domain.ExtractExpiry(content)
	if !found {
		return fmt.Errorf("license file %s contains no recognizable expiry date", filePath)
	}
	expiry, err := domain.ParseExpiry(rawExpiry)
	if err != nil {
		return fmt.Errorf("license file %s has an unparseable expiry date %q", filePath, rawExpiry)
	}

	days := domain.DaysToExpiry(expiry, p.now)
	if days < 0 {
		return fmt.Errorf("refusing to apply: license in %s expired on %s", filePath, rawExpiry)
	}
	if days <= domain.WarningThresholdDays && !p.force {
		if !p.ask(fmt.Sprintf("License in %s expires in %d days (%s). Apply anyway?", filePath, days, rawExpiry)) {
			return fmt.Errorf("aborted")
		}
	}

	current, err := p.service.GetByInstance(ctx, instanceID)
	switch {
	case apperrors.IsType(err, apperrors.ErrTypeNotFound):
		// Nothing cached for this instance; no replacement check possible.
		return nil
	case err != nil:
		return fmt.Errorf("cannot read cached license for %s: %w", instanceID, err)
	}
	if current.DaysToExpiry > healthyDaysThreshold && !p.force {
		prompt := fmt.Sprintf("Instance %s still has %d days left on its current license (expires %s). Replace it?",
			instanceID, current.DaysToExpiry, current.ExpiryDate)
		if !p.ask(prompt) {
			return fmt.Errorf("aborted")
		}
	}
	return nil
}

// confirm asks a yes/no question on stdin.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
