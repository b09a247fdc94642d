package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/app"
	"github.com/ajramos/kyra/internal/config"
	"github.com/ajramos/kyra/internal/guard"
	"github.com/ajramos/kyra/internal/render"
	"github.com/ajramos/kyra/internal/stores"
	"github.com/ajramos/kyra/internal/version"
	"github.com/ajramos/kyra/pkg/auth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Routes the commands are gated on
const (
	routeMail          = "/mail"
	routeCompose       = "/mail/compose"
	routeChat          = "/chat"
	routeTimeline      = "/timeline"
	routeDigest        = "/app/digest"
	routeCalendar      = "/app/calendar"
	routeOrganizations = "/app/organizations"
)

// prefSelectedOrg remembers the organization member commands act on
const prefSelectedOrg = "selected_organization"

func (c *cli) loginCmd() *cobra.Command {
	var callbackURL string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google through the Kyra backend",
		Long: "Opens the Kyra login flow and waits for the backend to redirect back\n" +
			"to a local listener. Use --callback-url to paste the final redirect URL\n" +
			"when the browser runs on another machine.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd, "", func(ctx context.Context, k *app.Container) error {
				if d := k.Guard.Decide(k.Config.API.LoginPath); d.Class == guard.AuthOnly && !d.Allowed() {
					fmt.Fprintf(c.out, "Already logged in as %s\n", k.Session.Snapshot().Email)
					return nil
				}

				cb, err := c.awaitCallback(ctx, k.Config, callbackURL)
				if err != nil {
					return err
				}
				k.Login(cb)
				fmt.Fprintf(c.out, "Logged in as %s (%s)\n", cb.DisplayName, cb.Email)

				done, err := k.OnboardingComplete(ctx)
				if err != nil {
					return err
				}
				if !done {
					fmt.Fprintln(c.out, "Welcome to Kyra! Run `kyra sync` to import your inbox, then `kyra dashboard`.")
					return k.CompleteOnboarding(ctx)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&callbackURL, "callback-url", "", "Final login redirect URL containing token, email and user_id")
	return cmd
}

func (c *cli) awaitCallback(ctx context.Context, cfg *config.Config, callbackURL string) (auth.Callback, error) {
	if callbackURL != "" {
		return auth.ParseCallbackURL(callbackURL)
	}

	l, err := auth.NewLoginListener(cfg.Auth.CallbackAddr)
	if err != nil {
		return auth.Callback{}, err
	}
	loginURL, err := auth.LoginURL(cfg.Auth.LoginURL, l.CallbackURL())
	if err != nil {
		_ = l.Close()
		return auth.Callback{}, err
	}
	fmt.Fprintf(c.out, "Open this link in your browser to sign in:\n\n  %s\n\nWaiting for the login to complete...\n", loginURL)
	return l.Wait(ctx, cfg.GetCallbackTimeout())
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget cached data for this account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd, "", func(ctx context.Context, k *app.Container) error {
				err := errors.Join(k.Logout(ctx), k.Prefs.Delete(ctx, prefSelectedOrg))
				fmt.Fprintln(c.out, "Logged out")
				return err
			})
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd, "", func(_ context.Context, k *app.Container) error {
				s := k.Session.Snapshot()
				if !s.Authenticated {
					fmt.Fprintln(c.out, "Not logged in")
					return nil
				}
				fmt.Fprintf(c.out, "%s <%s> (user %s)\n", s.DisplayName, s.Email, s.UserID)
				return nil
			})
		},
	}
}

func (c *cli) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"refresh"},
		Short:   "Load stats, digest, timeline, calendar and inbox",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd, guard.DefaultLandingPath, func(ctx context.Context, k *app.Container) error {
				var err error
				if !c.offline {
					err = k.Refresh(ctx)
				}
				width := c.rowWidth(k.Config)

				fmt.Fprintf(c.out, "== Stats\n%s\n\n", render.FormatStats(k.Dashboard.Stats()))
				fmt.Fprintf(c.out, "== Digest\n%s\n\n", render.FormatDigest(k.Digest.Content(), width))
				fmt.Fprintln(c.out, "== Timeline")
				c.printTasks(k.Timeline.Tasks(), width)
				fmt.Fprintln(c.out, "\n== Calendar")
				c.printEvents(k.Calendar.Events(), width)
				fmt.Fprintln(c.out, "\n== Inbox")
				c.printEmails(k.Email.Emails(), width)
				return err
			})
		},
	}
}

func (c *cli) inboxCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List emails, optionally filtered by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd, routeMail, func(ctx context.Context, k *app.Container) error {
				if !c.offline {
					if err := k.Email.SetCategory(ctx, category); err != nil {
						return err
					}
				} else if !k.Email.Loaded() {
					fmt.Fprintln(c.out, "No saved inbox yet; run without --offline")
					return nil
				}
				c.printEmails(k.Email.Emails(), c.rowWidth(k.Config))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", api.CategoryAll, "Category to list")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <email-id>",
		Short: "Print one email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, routeMail, func(ctx context.Context, k *app.Container) error {
				m, err := k.Client.GetMessage(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, render.NewEmailRenderer().FormatMessage(m, c.rowWidth(k.Config)))
				return nil
			})
		},
	}
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import new Gmail messages, then reload the inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd, routeMail, func(ctx context.Context, k *app.Container) error {
				if err := k.Sync(ctx); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%d emails in %s\n", len(k.Email.Emails()), k.Email.SelectedCategory())
				return nil
			})
		},
	}
}

// mutateEmail loads the inbox and applies op to the row with the given id
func (c *cli) mutateEmail(use, short, done string, op func(context.Context, *app.Container, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return c.withContainer(cmd, routeMail, func(ctx context.Context, k *app.Container) error {
				if err := k.Email.Fetch(ctx, k.Email.SelectedCategory()); err != nil {
					return err
				}
				subject, ok := findSubject(k.Email.Emails(), id)
				if !ok {
					return fmt.Errorf("email %s is not in the inbox", id)
				}
				if err := op(ctx, k, id); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s: %s\n", done, subject)
				return nil
			})
		},
	}
}

func (c *cli) archiveCmd() *cobra.Command {
	return c.mutateEmail("archive", "Archive an email", "Archived", func(ctx context.Context, k *app.Container, id string) error {
		return k.Email.Archive(ctx, id)
	})
}

func (c *cli) readCmd() *cobra.Command {
	return c.mutateEmail("read", "Mark an email as read", "Marked read", func(ctx context.Context, k *app.Container, id string) error {
		return k.Email.MarkRead(ctx, id)
	})
}

func (c *cli) deleteCmd() *cobra.Command {
	return c.mutateEmail("delete", "Hide an email from the local list until the next fetch", "Hidden", func(_ context.Context, k *app.Container, id string) error {
		k.Email.Delete(id)
		return nil
	})
}

func findSubject(emails []api.Email, id string) (string, bool) {
	for _, e := range emails {
		if e.ID == id {
			return e.Subject, true
		}
	}
	return "", false
}

func (c *cli) draftCmd() *cobra.Command {
	var threadID, tone string
	cmd := &cobra.Command{
		Use:   "draft <prompt...>",
		Short: "Ask Kyra to write a reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, routeCompose, func(ctx context.Context, k *app.Container) error {
				resp, err := k.Draft(ctx, strings.Join(args, " "), threadID, tone)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, render.FormatBody(resp.DraftBody, render.FormatOptions{WrapWidth: c.rowWidth(k.Config)}))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread the draft replies to")
	cmd.Flags().StringVar(&tone, "tone", "", "Tone of the draft (default: draft.tone from config)")
	return cmd
}

func (c *cli) sendCmd() *cobra.Command {
	var to, subject, threadID string
	cmd := &cobra.Command{
		Use:   "send [body...]",
		Short: "Send an email; the body is read from stdin when omitted or -",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(to) == "" {
				return fmt.Errorf("--to is required")
			}
			body := strings.Join(args, " ")
			if body == "" || body == "-" {
				data, err := io.ReadAll(c.in)
				if err != nil {
					return fmt.Errorf("read body: %w", err)
				}
				body = string(data)
			}
			return c.withContainer(cmd, routeCompose, func(ctx context.Context, k *app.Container) error {
				resp, err := k.Send(ctx, to, subject, body, threadID)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Sent (message %s)\n", resp.MessageID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient address")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject line")
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread to reply in")
	return cmd
}

func (c *cli) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message...]",
		Short: "Ask Kyra about your inbox; without arguments starts a conversation",
		Long: "With a message, sends it and prints the answer. Without one, reads\n" +
			"messages from stdin line by line in a single conversation. Type /reset\n" +
			"to start over and /quit to leave.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, routeChat, func(ctx context.Context, k *app.Container) error {
				width := c.rowWidth(k.Config)
				if len(args) > 0 {
					reply, err := k.Chat.Send(ctx, strings.Join(args, " "))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.out, render.FormatChatMessage(*reply, width))
					return nil
				}
				return c.chatLoop(ctx, k.Chat, width)
			})
		},
	}
}

// chatLoop reads one message per line. Without --width, edits to row_width
// in the config file apply to the next reply.
func (c *cli) chatLoop(ctx context.Context, chat *stores.ChatStore, width int) error {
	var rowWidth atomic.Int64
	rowWidth.Store(int64(width))
	if c.width == 0 && c.manager != nil {
		unsubscribe := c.manager.Subscribe(func(cfg *config.Config) {
			rowWidth.Store(int64(cfg.RowWidth))
		})
		defer unsubscribe()
		stop, err := c.manager.Follow(ctx, func(err error) {
			c.logger.Printf("config: reload skipped: %v", err)
		})
		if err != nil {
			c.logger.Printf("config: not following edits: %v", err)
		} else {
			defer stop()
		}
	}

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			chat.Reset()
			fmt.Fprintln(c.out, "Started a new conversation")
			continue
		}

		reply, err := chat.Send(ctx, line)
		switch {
		case err == nil:
			fmt.Fprintln(c.out, render.FormatChatMessage(*reply, int(rowWidth.Load())))
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, api.ErrUnauthorized):
			return err
		}
		// other failures were shown as a notification; the conversation stays open
	}
}

func (c *cli) digestCmd() *cobra.Command {
	var generate bool
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Show today's digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd, routeDigest, func(ctx context.Context, k *app.Container) error {
				switch {
				case generate:
					if err := k.GenerateDigest(ctx); err != nil {
						return err
					}
				case !c.offline:
					if err := k.Digest.FetchLatest(ctx, k.Session.Snapshot().Email); err != nil {
						return err
					}
				}
				fmt.Fprintln(c.out, render.FormatDigest(k.Digest.Content(), c.rowWidth(k.Config)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&generate, "generate", "g", false, "Generate a fresh digest first")
	return cmd
}

func (c *cli) timelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Show today's tasks and events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd, routeTimeline, func(ctx context.Context, k *app.Container) error {
				if !c.offline {
					if err := k.Timeline.Fetch(ctx, k.Session.Snapshot().Email); err != nil {
						return err
					}
				}
				c.printTasks(k.Timeline.Tasks(), c.rowWidth(k.Config))
				return nil
			})
		},
	}
}

func (c *cli) calendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendar",
		Short: "Show upcoming calendar events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd, routeCalendar, func(ctx context.Context, k *app.Container) error {
				if !c.offline {
					if err := k.Calendar.Fetch(ctx, k.Session.Snapshot().Email); err != nil {
						return err
					}
				}
				c.printEvents(k.Calendar.Events(), c.rowWidth(k.Config))
				return nil
			})
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd, guard.DefaultLandingPath, func(ctx context.Context, k *app.Container) error {
				if !c.offline {
					if err := k.Dashboard.Fetch(ctx, k.Session.Snapshot().Email); err != nil {
						return err
					}
				}
				fmt.Fprintln(c.out, render.FormatStats(k.Dashboard.Stats()))
				return nil
			})
		},
	}
}

func (c *cli) orgsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orgs",
		Aliases: []string{"organizations"},
		Short:   "List and manage organizations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd, routeOrganizations, c.listOrgs)
		},
	}

	var plan string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, routeOrganizations, func(ctx context.Context, k *app.Container) error {
				org, err := k.Orgs.Create(ctx, args[0], plan)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Created %s (%s)\n", org.Name, org.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&plan, "plan", "", "Plan type (default: free)")

	use := &cobra.Command{
		Use:   "use <org-id>",
		Short: "Select the organization member commands act on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, routeOrganizations, func(ctx context.Context, k *app.Container) error {
				if err := k.Orgs.Select(ctx, args[0]); err != nil {
					return err
				}
				if err := k.Prefs.Set(ctx, prefSelectedOrg, args[0]); err != nil {
					return err
				}
				c.printMembers(k.Orgs.Members.Value())
				return nil
			})
		},
	}

	var org string
	members := &cobra.Command{
		Use:   "members",
		Short: "List members of the selected organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withOrg(cmd, org, func(context.Context, *app.Container) error { return nil })
		},
	}
	members.PersistentFlags().StringVar(&org, "org", "", "Organization id (default: the one chosen with `orgs use`)")

	var role string
	invite := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Add a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withOrg(cmd, org, func(ctx context.Context, k *app.Container) error {
				return k.Orgs.AddMember(ctx, args[0], role)
			})
		},
	}
	invite.Flags().StringVar(&role, "role", "member", "Role of the new member")

	setRole := &cobra.Command{
		Use:   "role <user-id> <role>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withOrg(cmd, org, func(ctx context.Context, k *app.Container) error {
				return k.Orgs.UpdateRole(ctx, args[0], args[1])
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <user-id>",
		Short: "Remove a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withOrg(cmd, org, func(ctx context.Context, k *app.Container) error {
				return k.Orgs.RemoveMember(ctx, args[0])
			})
		},
	}

	members.AddCommand(invite, setRole, remove)
	cmd.AddCommand(create, use, members)
	return cmd
}

func (c *cli) listOrgs(ctx context.Context, k *app.Container) error {
	if !c.offline {
		if err := k.Orgs.Fetch(ctx); err != nil {
			return err
		}
	}
	selected, _, err := k.Prefs.Get(ctx, prefSelectedOrg)
	if err != nil {
		return err
	}
	orgs := k.Orgs.Orgs.Value()
	if len(orgs) == 0 {
		fmt.Fprintln(c.out, "No organizations")
		return nil
	}
	for _, o := range orgs {
		fmt.Fprintln(c.out, render.FormatOrganization(o, o.ID == selected))
	}
	return nil
}

// withOrg selects the organization from --org or the saved choice, runs op
// and prints the refreshed member list
func (c *cli) withOrg(cmd *cobra.Command, org string, op func(context.Context, *app.Container) error) error {
	return c.withContainer(cmd, routeOrganizations, func(ctx context.Context, k *app.Container) error {
		if org == "" {
			saved, ok, err := k.Prefs.Get(ctx, prefSelectedOrg)
			if err != nil {
				return err
			}
			if !ok {
				return stores.ErrNoOrganization
			}
			org = saved
		}
		if err := k.Orgs.Select(ctx, org); err != nil {
			return err
		}
		if err := op(ctx, k); err != nil {
			return err
		}
		c.printMembers(k.Orgs.Members.Value())
		return nil
	})
}

func (c *cli) guardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guard <route...>",
		Short: "Show how each route is treated for the current session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, "", func(_ context.Context, k *app.Container) error {
				for _, route := range args {
					d := k.Guard.Decide(route)
					verdict := "allow"
					if !d.Allowed() {
						verdict = "redirect " + d.Redirect
					}
					fmt.Fprintf(c.out, "%-24s %-10s %s\n", route, d.Class, verdict)
				}
				return nil
			})
		},
	}
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := getConfigPath(c.configPath)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.NewManager().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, path, err := c.loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "# %s\n%s", path, data)
			return nil
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(c.out, version.GetDetailedVersionString())
		},
	}
}

func (c *cli) printEmails(emails []api.Email, width int) {
	if len(emails) == 0 {
		fmt.Fprintln(c.out, "No emails")
		return
	}
	r := render.NewEmailRenderer()
	for _, e := range emails {
		fmt.Fprintf(c.out, "%s  %s\n", e.ID, r.FormatEmailList(e, width))
	}
}

func (c *cli) printTasks(tasks []api.Task, width int) {
	if len(tasks) == 0 {
		fmt.Fprintln(c.out, "Nothing scheduled")
		return
	}
	for _, t := range tasks {
		fmt.Fprintln(c.out, render.FormatTask(t, width))
	}
}

func (c *cli) printEvents(events []api.CalendarEvent, width int) {
	if len(events) == 0 {
		fmt.Fprintln(c.out, "No upcoming events")
		return
	}
	for _, e := range events {
		fmt.Fprintln(c.out, render.FormatEvent(e, width))
	}
}

func (c *cli) printMembers(members []api.Member) {
	if len(members) == 0 {
		fmt.Fprintln(c.out, "No members")
		return
	}
	for _, m := range members {
		fmt.Fprintln(c.out, render.FormatMember(m))
	}
}
