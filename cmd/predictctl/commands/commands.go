package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/predictctl/pkg/appdata"
	"github.com/xaionaro-go/predictctl/pkg/buildvars"
	"github.com/xaionaro-go/predictctl/pkg/commands"
	"github.com/xaionaro-go/predictctl/pkg/config"
	"github.com/xaionaro-go/predictctl/pkg/oauthhandler"
	"github.com/xaionaro-go/predictctl/pkg/predictctl"
	"github.com/xaionaro-go/predictctl/pkg/templates"
	"github.com/xaionaro-go/predictctl/pkg/twitch/auth"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
	"github.com/xaionaro-go/predictctl/pkg/xpath"
)

var (
	// Access these variables only from a main package:

	Root = &cobra.Command{
		Use:  os.Args[0],
		Long: "manage Twitch channel-point predictions",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			l := logger.FromCtx(ctx).WithLevel(LoggerLevel)
			ctx = logger.CtxWithLogger(ctx, l)
			cmd.SetContext(ctx)
			logger.Debugf(ctx, "log-level: %v", LoggerLevel)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			if p := instance.Swap(nil); p != nil {
				if err := p.Close(); err != nil {
					logger.Error(ctx, err)
				}
			}
			logger.Debug(ctx, "end")
		},
	}

	Commands = &cobra.Command{
		Use:   "commands",
		Short: "list the commands available to 'invoke'",
		Args:  cobra.ExactArgs(0),
		Run:   listCommands,
	}

	Invoke = &cobra.Command{
		Use:   "invoke <command> [key=value...]",
		Short: "run a command; unset parameters are taken from the settings",
		Args:  cobra.MinimumNArgs(1),
		Run:   invoke,
	}

	Login = &cobra.Command{
		Use:   "login",
		Short: "authorize the application (or get an app token for auth_type 'app')",
		Args:  cobra.ExactArgs(0),
		Run:   login,
	}

	User = &cobra.Command{
		Use:   "user [login]",
		Short: "show the Twitch user (the configured channel by default)",
		Args:  cobra.MaximumNArgs(1),
		Run:   user,
	}

	Config = &cobra.Command{
		Use: "config",
	}

	ConfigGet = &cobra.Command{
		Use:  "get",
		Args: cobra.ExactArgs(0),
		Run:  configGet,
	}

	ConfigSet = &cobra.Command{
		Use:   "set <key=value...>",
		Short: "change the settings, e.g. 'set channel=somebody client_id=abc'",
		Args:  cobra.MinimumNArgs(1),
		Run:   configSet,
	}

	ImportLegacy = &cobra.Command{
		Use:   "import-legacy <dir>",
		Short: "take over the .env and my_predictions.json of an older installation",
		Args:  cobra.ExactArgs(1),
		Run:   importLegacy,
	}

	Templates = &cobra.Command{
		Use: "templates",
	}

	TemplatesList = &cobra.Command{
		Use:  "list",
		Args: cobra.ExactArgs(0),
		Run:  templatesList,
	}

	TemplatesAdd = &cobra.Command{
		Use:  "add <title> <outcome> <outcome> [outcome...]",
		Args: cobra.MinimumNArgs(3),
		Run:  templatesAdd,
	}

	TemplatesRemove = &cobra.Command{
		Use:  "remove <id>",
		Args: cobra.ExactArgs(1),
		Run:  templatesRemove,
	}

	TemplatesStart = &cobra.Command{
		Use:   "start <id>",
		Short: "start a prediction from the template",
		Args:  cobra.ExactArgs(1),
		Run:   templatesStart,
	}

	Version = &cobra.Command{
		Use:  "version",
		Args: cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(buildvars.String())
		},
	}

	LoggerLevel = logger.LevelWarning

	// predictCtlOptions are appended to the options of predictctl.New.
	predictCtlOptions []predictctl.Option

	instance atomic.Pointer[predictctl.PredictCtl]
)

func init() {
	Root.AddCommand(Version)
	Root.AddCommand(Commands)
	Root.AddCommand(Invoke)
	Root.AddCommand(Login)
	Root.AddCommand(User)

	Root.AddCommand(Config)
	Config.AddCommand(ConfigGet)
	Config.AddCommand(ConfigSet)

	Root.AddCommand(ImportLegacy)
	Root.AddCommand(Templates)
	Templates.AddCommand(TemplatesList)
	Templates.AddCommand(TemplatesAdd)
	Templates.AddCommand(TemplatesRemove)
	Templates.AddCommand(TemplatesStart)

	defaultDataDir, err := xpath.DefaultDataDir()
	if err != nil {
		defaultDataDir = "~/.predictctl"
	}
	Root.PersistentFlags().Var(&LoggerLevel, "log-level", "")
	Root.PersistentFlags().String("data-dir", defaultDataDir, "the directory with the settings, tokens and templates")
	Root.PersistentFlags().String("oauth-via", "browser", "how to complete the authorization: 'browser' or 'cli'")

	User.Flags().Bool("dump", false, "dump the whole record")
	TemplatesAdd.Flags().Int("duration", types.DefaultPredictionWindow, "prediction window in seconds")
}

// SecretWords returns the secrets of the loaded settings, for the log filter.
func SecretWords() []string {
	p := instance.Load()
	if p == nil {
		return nil
	}
	return p.SecretWords()
}

func assertNoError(ctx context.Context, err error) {
	if err != nil {
		logger.Panic(ctx, err)
	}
}

func getPredictCtl(cmd *cobra.Command) *predictctl.PredictCtl {
	if p := instance.Load(); p != nil {
		return p
	}
	ctx := cmd.Context()

	dataDirPath, err := cmd.Flags().GetString("data-dir")
	assertNoError(ctx, err)

	oauthVia, err := cmd.Flags().GetString("oauth-via")
	assertNoError(ctx, err)

	var oauthHandler auth.OAuthHandler
	switch oauthVia {
	case "browser":
		oauthHandler = oauthhandler.OAuth2HandlerViaBrowser
	case "cli":
		oauthHandler = oauthhandler.OAuth2HandlerViaCLI
	default:
		logger.Panicf(ctx, "unknown value of --oauth-via: '%s'", oauthVia)
	}

	dataDir, err := appdata.Open(ctx, dataDirPath)
	assertNoError(ctx, err)

	opts := append([]predictctl.Option{predictctl.OptionOAuthHandler(oauthHandler)}, predictCtlOptions...)
	p, err := predictctl.New(ctx, dataDir, opts...)
	assertNoError(ctx, err)
	instance.Store(p)
	return p
}

func listCommands(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	for _, c := range commands.List() {
		fmt.Fprintf(out, "%s: %s\n", c.Name, c.Description)
		for _, param := range c.Params {
			line := "\t" + param.Name
			if param.Default != "" {
				line += fmt.Sprintf(" (default: %s)", param.Default)
			}
			if param.Description != "" {
				line += " - " + param.Description
			}
			fmt.Fprintln(out, line)
		}
	}
}

func invoke(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	p := getPredictCtl(cmd)

	params, err := commands.ParseKeyValues(args[1:])
	assertNoError(ctx, err)

	env := &commands.Env{
		DataDir:    p.DataDir,
		HTTPClient: p.HTTPClient,
		Endpoints:  p.Endpoints,
		Defaults:   p.Config(ctx),
	}
	if _, ok := params["access_token"]; !ok {
		// the token came from the settings, so the refreshed one goes there too
		env.OnTokensRefreshed = func(ctx context.Context, tokens types.TokenResponse) {
			err := p.UpdateConfig(ctx, func(cfg *config.Config) error {
				cfg.SetTokens(tokens)
				return nil
			})
			if err != nil {
				logger.Errorf(ctx, "unable to save the refreshed tokens: %v", err)
			}
		}
	}

	result, err := commands.Invoke(ctx, env, args[0], params)
	if err != nil {
		// the error message is the payload of a failed command
		fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
		Root.PersistentPostRun(cmd, args)
		belt.Flush(ctx)
		os.Exit(1)
	}
	fmt.Fprintln(cmd.OutOrStdout(), result)
}

func login(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	p := getPredictCtl(cmd)

	var err error
	switch p.Config(ctx).AuthType {
	case config.AuthTypeApp:
		err = p.EnsureTokens(ctx)
	default:
		err = p.Login(ctx)
	}
	assertNoError(ctx, err)

	broadcasterID, err := p.EnsureBroadcasterID(ctx)
	assertNoError(ctx, err)
	fmt.Printf("logged in, broadcaster ID: %s\n", broadcasterID)
}

func user(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	p := getPredictCtl(cmd)

	assertNoError(ctx, p.EnsureTokens(ctx))

	login := p.Config(ctx).Channel
	if len(args) > 0 {
		login = args[0]
	}

	client, err := p.Client(ctx)
	assertNoError(ctx, err)

	u, err := client.GetUser(ctx, login)
	assertNoError(ctx, err)

	dump, err := cmd.Flags().GetBool("dump")
	assertNoError(ctx, err)
	if dump {
		spew.Dump(u)
		return
	}
	fmt.Printf("%s (%s): %s\n", u.DisplayName, u.Login, u.ID)
}

func configGet(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	p := getPredictCtl(cmd)

	cfg := p.Config(ctx).Redacted()
	_, err := cfg.WriteTo(os.Stdout)
	assertNoError(ctx, err)
}

func configSet(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	p := getPredictCtl(cmd)

	values, err := commands.ParseKeyValues(args)
	assertNoError(ctx, err)

	err = p.UpdateConfig(ctx, func(cfg *config.Config) error {
		return cfg.Set(values)
	})
	assertNoError(ctx, err)
}

func importLegacy(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	p := getPredictCtl(cmd)

	legacyDir, err := appdata.Open(ctx, args[0])
	assertNoError(ctx, err)

	result, err := p.ImportLegacy(ctx, legacyDir)
	assertNoError(ctx, err)
	fmt.Printf("settings imported: %v; templates imported: %d\n", result.Settings, result.Templates)
}

func openTemplates(cmd *cobra.Command) (context.Context, *templates.Store) {
	ctx := cmd.Context()
	store, err := getPredictCtl(cmd).Templates(ctx)
	assertNoError(ctx, err)
	return ctx, store
}

func parseTemplateID(ctx context.Context, s string) uint {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		logger.Panicf(ctx, "invalid template ID '%s': %v", s, err)
	}
	return uint(id)
}

func templatesList(cmd *cobra.Command, args []string) {
	ctx, store := openTemplates(cmd)

	list, err := store.List(ctx)
	assertNoError(ctx, err)
	for _, t := range list {
		fmt.Printf(
			"%d\t%s\t%s\t%ds\tadded %s\n",
			t.ID, t.Title, strings.Join(t.Outcomes, " | "), t.Duration, humanize.Time(t.CreatedAt),
		)
	}
}

func templatesAdd(cmd *cobra.Command, args []string) {
	ctx, store := openTemplates(cmd)

	duration, err := cmd.Flags().GetInt("duration")
	assertNoError(ctx, err)

	t, err := store.Add(ctx, templates.Template{
		Title:    args[0],
		Outcomes: args[1:],
		Duration: duration,
	})
	assertNoError(ctx, err)
	fmt.Println(t.ID)
}

func templatesRemove(cmd *cobra.Command, args []string) {
	ctx, store := openTemplates(cmd)
	assertNoError(ctx, store.Remove(ctx, parseTemplateID(ctx, args[0])))
}

func templatesStart(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	p := getPredictCtl(cmd)

	assertNoError(ctx, p.EnsureTokens(ctx))
	result, err := p.StartPredictionFromTemplate(ctx, parseTemplateID(ctx, args[0]))
	assertNoError(ctx, err)

	var pretty map[string]any
	if json.Unmarshal(result, &pretty) == nil {
		if b, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			result = b
		}
	}
	fmt.Println(string(result))
}
