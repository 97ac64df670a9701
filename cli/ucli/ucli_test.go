package ucli

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	urfave "github.com/urfave/cli/v2"
	"go.dedis.ch/pre/cli"
)

func TestBuild(t *testing.T) {
	builder := NewBuilder("test", nil)
	builder.SetUsage("a test application")

	app := builder.Build().(*urfave.App)

	app.Writer = io.Discard

	require.Equal(t, "test", app.Name)
	require.Equal(t, "a test application", app.Usage)

	err := app.Run([]string{"test"})
	require.NoError(t, err)
}

func TestSetCommand(t *testing.T) {
	builder := NewBuilder("test", nil)

	builder.SetCommand("first")
	builder.SetCommand("second")

	app := builder.Build().(*urfave.App)

	require.Len(t, app.Commands, 3)

	require.Equal(t, "first", app.Commands[0].Name)
	require.Equal(t, "second", app.Commands[1].Name)
	require.Equal(t, "help", app.Commands[2].Name)
}

func TestCommandBuilder(t *testing.T) {
	builder := NewBuilder("test", nil)
	cmd := builder.SetCommand("first")

	fakeAction := func(flags cli.Flags) error {
		return nil
	}

	cmd.SetAction(fakeAction)
	cmd.SetDescription("first action")
	cmd.SetArgsUsage("<file>")
	cmd.SetFlags(cli.StringFlag{
		Name:     "arg",
		Usage:    "this is a test arg",
		Required: true,
		Value:    "default",
	})
	cmd.SetFlags(cli.BoolFlag{Name: "other"})
	cmd.SetSubCommand("second")

	require.Len(t, builder.commands, 1)
	require.Len(t, builder.flags, 0)

	cmd2 := builder.commands[0]
	require.Len(t, cmd2.flags, 2)
	require.Len(t, cmd2.subcommands, 1)
	require.Equal(t, "<file>", cmd2.argsUsage)
}

func TestBuildFlags(t *testing.T) {
	in := []cli.Flag{
		cli.StringFlag{
			Name:     "name1",
			Usage:    "usage1",
			Required: true,
			Value:    "value1",
		},
		cli.StringSliceFlag{
			Name:     "name2",
			Usage:    "usage2",
			Required: true,
			Value:    []string{},
		},
		cli.DurationFlag{
			Name:     "name3",
			Usage:    "usage3",
			Required: true,
			Value:    time.Minute,
		},
		cli.IntFlag{
			Name:     "name4",
			Usage:    "usage4",
			Required: true,
			Value:    1,
		},
		cli.BoolFlag{
			Name:     "name5",
			Usage:    "usage5",
			Required: true,
			Value:    true,
		},
		cli.Uint64Flag{
			Name:  "name6",
			Usage: "usage6",
			Value: 2,
		},
	}

	out := buildFlags(in)
	require.Len(t, out, 6)

	require.Equal(t, "name1", out[0].Names()[0])
	require.Equal(t, "name2", out[1].Names()[0])
	require.Equal(t, "name3", out[2].Names()[0])
	require.Equal(t, "name4", out[3].Names()[0])
	require.Equal(t, "name5", out[4].Names()[0])
	require.Equal(t, "name6", out[5].Names()[0])
}

func TestBuildFlags_Panic(t *testing.T) {
	defer func() {
		r := recover()
		require.Equal(t, "flag type '<nil>' not supported", r)
	}()

	buildFlags([]cli.Flag{nil})
}

func TestMakeAction(t *testing.T) {
	res := makeAction(nil)
	require.Nil(t, res)

	isCalled := false
	fakeAction := func(flags cli.Flags) error {
		isCalled = true
		return nil
	}

	res = makeAction(fakeAction)
	require.NotNil(t, res)

	out := res(nil)
	require.NoError(t, out)
	require.True(t, isCalled)
}

func TestFlags(t *testing.T) {
	builder := NewBuilder("test", nil)

	var values []interface{}

	cmd := builder.SetCommand("cmd")
	cmd.SetFlags(
		cli.StringFlag{Name: "string"},
		cli.StringSliceFlag{Name: "slice"},
		cli.DurationFlag{Name: "duration"},
		cli.IntFlag{Name: "int"},
		cli.Uint64Flag{Name: "uint", Value: 5},
		cli.BoolFlag{Name: "bool"},
	)
	cmd.SetAction(func(flags cli.Flags) error {
		values = []interface{}{
			flags.String("string"),
			flags.StringSlice("slice"),
			flags.Duration("duration"),
			flags.Int("int"),
			flags.Uint64("uint"),
			flags.Bool("bool"),
			flags.Args(),
		}
		return nil
	})

	app := builder.Build()

	err := app.Run([]string{"test", "cmd", "--string", "abc", "--slice", "a",
		"--slice", "b", "--duration", "2s", "--int", "-3", "--bool", "first", "second"})
	require.NoError(t, err)

	require.Equal(t, []interface{}{
		"abc",
		[]string{"a", "b"},
		2 * time.Second,
		-3,
		uint64(5),
		true,
		[]string{"first", "second"},
	}, values)
}

func TestFlags_EnvVar(t *testing.T) {
	t.Setenv("UCLI_TEST_STRING", "from-env")
	t.Setenv("UCLI_TEST_BOOL", "true")

	builder := NewBuilder("test", nil)

	var values []interface{}

	cmd := builder.SetCommand("cmd")
	cmd.SetFlags(
		cli.StringFlag{Name: "string", EnvVar: "UCLI_TEST_STRING"},
		cli.StringFlag{Name: "other", EnvVar: "UCLI_TEST_STRING"},
		cli.BoolFlag{Name: "bool", EnvVar: "UCLI_TEST_BOOL"},
	)
	cmd.SetAction(func(flags cli.Flags) error {
		values = []interface{}{flags.String("string"), flags.String("other"), flags.Bool("bool")}
		return nil
	})

	err := builder.Build().Run([]string{"test", "cmd", "--other", "from-flag"})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"from-env", "from-flag", true}, values)
}
