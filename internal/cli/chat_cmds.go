package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/srmsweets/hrportal/internal/chat"
	"github.com/srmsweets/hrportal/internal/models"
)

// groupView is the machine-readable shape of a group.
type groupView struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Members     []string `json:"members" yaml:"members"`
	CreatedBy   string   `json:"created_by" yaml:"created_by"`
	Owned       bool     `json:"owned" yaml:"owned"`
	Unread      int      `json:"unread" yaml:"unread"`
	LastMessage string   `json:"last_message,omitempty" yaml:"last_message,omitempty"`
	LastSender  string   `json:"last_sender,omitempty" yaml:"last_sender,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

type messageView struct {
	ID         string `json:"id" yaml:"id"`
	SenderID   string `json:"sender_id" yaml:"sender_id"`
	SenderName string `json:"sender_name" yaml:"sender_name"`
	Content    string `json:"content" yaml:"content"`
	Timestamp  string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

func toGroupView(g models.Group, viewer string) groupView {
	return groupView{
		ID:          g.ID,
		Name:        g.Name,
		Members:     g.Members,
		CreatedBy:   g.CreatedBy,
		Owned:       g.OwnedBy(viewer),
		Unread:      g.Unread(viewer),
		LastMessage: g.LastMessage,
		LastSender:  g.LastMessageSender,
		UpdatedAt:   formatTime(g.UpdatedAt.Time),
	}
}

func toMessageView(m models.Message) messageView {
	return messageView{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Timestamp:  formatTime(m.Timestamp.Time),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func newGroupsCmd(a *app) *cobra.Command {
	var output string
	var filter string
	var recent bool
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"ls"},
		Short:   "List the groups you belong to",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}
			defer engine.Close()
			if err := engine.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("list groups: %w", err)
			}

			groups := chat.FilterByName(engine.Groups(), filter)
			if recent {
				groups = chat.SortByRecency(groups)
			}
			viewer := engine.Identity().UserID
			views := make([]groupView, 0, len(groups))
			for _, g := range groups {
				views = append(views, toGroupView(g, viewer))
			}
			if output != outputTable {
				return writeStructured(cmd.OutOrStdout(), output, views)
			}

			if len(views) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No groups.")
				return err
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{
					shortID(v.ID),
					v.Name,
					strconv.Itoa(v.Unread),
					formatYesNo(v.Owned),
					strconv.Itoa(len(v.Members)),
					clip(lastLine(v), 48),
				})
			}
			return writeTable(cmd.OutOrStdout(), []string{"ID", "NAME", "UNREAD", "OWNER", "MEMBERS", "LAST MESSAGE"}, rows)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table|json|yaml")
	cmd.Flags().StringVar(&filter, "filter", "", "only groups whose name contains this text")
	cmd.Flags().BoolVar(&recent, "recent", false, "most recently active first")
	return cmd
}

func lastLine(v groupView) string {
	if strings.TrimSpace(v.LastMessage) == "" {
		return "No messages yet"
	}
	if v.LastSender == "" {
		return v.LastMessage
	}
	return v.LastSender + ": " + v.LastMessage
}

func newMessagesCmd(a *app) *cobra.Command {
	var output string
	var limit int
	cmd := &cobra.Command{
		Use:   "messages <group>",
		Short: "Show a group's messages without marking them read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			groups, err := client.ListGroups(cmd.Context(), a.cfg.Identity.UserID)
			if err != nil {
				return fmt.Errorf("list groups: %w", err)
			}
			group, err := findGroup(groups, args[0])
			if err != nil {
				return err
			}
			msgs, err := client.ListMessages(cmd.Context(), group.ID)
			if err != nil {
				return fmt.Errorf("list messages: %w", err)
			}
			if limit > 0 && len(msgs) > limit {
				msgs = msgs[len(msgs)-limit:]
			}

			views := make([]messageView, 0, len(msgs))
			for _, m := range msgs {
				views = append(views, toMessageView(m))
			}
			if output != outputTable {
				return writeStructured(cmd.OutOrStdout(), output, views)
			}
			if len(views) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No messages yet. Say hello!")
				return err
			}
			viewer := a.cfg.Identity.UserID
			rows := make([][]string, 0, len(msgs))
			for _, m := range msgs {
				sender := m.SenderName
				if m.SenderID == viewer {
					sender = "You"
				}
				stamp := ""
				if !m.Timestamp.IsZero() {
					stamp = m.Timestamp.Local().Format("Jan 02 15:04")
				}
				rows = append(rows, []string{stamp, sender, clip(m.Content, 72)})
			}
			return writeTable(cmd.OutOrStdout(), []string{"TIME", "FROM", "MESSAGE"}, rows)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table|json|yaml")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the last N messages")
	return cmd
}

func newSendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <group> <message>",
		Short: "Send a message to a group",
		Long:  "Send a message to a group. The group is opened first, which marks it read.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := a.engine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.Refresh(ctx); err != nil {
				return fmt.Errorf("list groups: %w", err)
			}
			group, err := findGroup(engine.Groups(), args[0])
			if err != nil {
				return err
			}
			if err := engine.SelectGroup(ctx, group.ID); err != nil {
				log := logCLI()
				log.Warn().Err(err).Str("group_id", group.ID).Msg("mark read on open failed")
			}
			if _, err := engine.Send(ctx, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Sent to %s\n", group.Name)
			return err
		},
	}
	return cmd
}

func newReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <group>",
		Short: "Mark a group read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := a.engine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.Refresh(ctx); err != nil {
				return fmt.Errorf("list groups: %w", err)
			}
			group, err := findGroup(engine.Groups(), args[0])
			if err != nil {
				return err
			}
			if err := engine.MarkRead(ctx, group.ID); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Marked %s read\n", group.Name)
			return err
		},
	}
}

func newGroupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Create or delete groups",
	}
	cmd.AddCommand(newGroupCreateCmd(a), newGroupDeleteCmd(a))
	return cmd
}

func newGroupCreateCmd(a *app) *cobra.Command {
	var name string
	var members []string
	var output string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group you own",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}
			defer engine.Close()

			created, err := engine.CreateGroup(cmd.Context(), name, members)
			if err != nil {
				return err
			}
			if created == nil || created.ID == "" {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", strings.TrimSpace(name))
				return err
			}
			if output != outputTable {
				return writeStructured(cmd.OutOrStdout(), output, toGroupView(*created, engine.Identity().UserID))
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", created.Name, created.ID)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "group name")
	cmd.Flags().StringSliceVarP(&members, "member", "m", nil, "member employee id (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table|json|yaml")
	return cmd
}

func newGroupDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <group>",
		Aliases: []string{"rm"},
		Short:   "Delete a group you created",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := a.engine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.Refresh(ctx); err != nil {
				return fmt.Errorf("list groups: %w", err)
			}
			group, err := findGroup(engine.Groups(), args[0])
			if err != nil {
				return err
			}
			if err := engine.DeleteGroup(ctx, group.ID); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", group.Name)
			return err
		},
	}
}
