package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/comicshelf/internal/navigator"
)

var showCmd = &cobra.Command{
	Use:   "show [date]",
	Short: "Show the comic of a date, or the latest one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			nav, err := a.navigator(ctx)
			if err != nil {
				return err
			}
			date := nav.Default()
			if len(args) == 1 {
				date = args[0]
			}
			return visit(ctx, cmd, a, nav, date)
		})
	},
}

var navCmd = &cobra.Command{
	Use:       "nav <first|previous|next|last|random> [date]",
	Short:     "Move from a date and show the comic landed on",
	Long:      "Move from a date (the latest comic when omitted) and show the comic landed on.\nNavigation clamps at both ends of the archive; random never repeats the current date.",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"first", "previous", "next", "last", "random"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := navigator.ParseAction(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			nav, err := a.navigator(ctx)
			if err != nil {
				return err
			}
			current := nav.Default()
			if len(args) == 2 {
				current = args[1]
			}
			target, err := nav.Apply(action, current)
			if err != nil {
				return err
			}
			return visit(ctx, cmd, a, nav, target)
		})
	},
}

func visit(ctx context.Context, cmd *cobra.Command, a *app, nav *navigator.Navigator, date string) error {
	rec, err := nav.Visit(ctx, date)
	if err != nil {
		return err
	}
	return printComic(cmd.OutOrStdout(), a.view(rec))
}

func init() {
	rootCmd.AddCommand(showCmd, navCmd)
}
