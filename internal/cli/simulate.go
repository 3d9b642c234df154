package cli

import (
	"github.com/spf13/cobra"

	"ticket-pricing/internal/alerting"
)

var simulateEvent string

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "发送一条样例告警以验证告警通道",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), simulateEvent)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateEvent, "event", string(alerting.EventWinnerAdopted), "winner_adopted 或 stale_quotes")
}
