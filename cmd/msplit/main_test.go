package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/codec"
	"github.com/cretz/msplit/op"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin []byte, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(bytes.NewReader(stdin))
	root.SetArgs(append([]string{"--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func addRoutine() *bytecode.Routine {
	return bytecode.NewBuilder("Calc", bytecode.AccPublic|bytecode.AccStatic, "add", "(IJ)J").
		Load(bytecode.IntType, 0).
		Op(op.I2l).
		Load(bytecode.LongType, 1).
		Op(op.Ladd).
		Return(bytecode.LongType).
		MustRoutine()
}

func writeFile(t *testing.T, routines ...*bytecode.Routine) string {
	t.Helper()
	data, err := codec.MarshalAll(routines...)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "routines.cbor")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDemo(t *testing.T) {
	out, _, err := execute(t, nil, "demo", "--terms", "200", "--owner", "Demo")
	require.NoError(t, err)
	require.Contains(t, out, "original   Demo.sum()I  804 instructions")
	require.Contains(t, out, "trimmed    Demo.sum()I")
	require.Contains(t, out, "extracted  Demo.sum$split")
	require.Contains(t, out, "result     original=19900 split=19900")
}

func TestDemoTooLarge(t *testing.T) {
	out, _, err := execute(t, nil, "demo", "--owner", "Demo")
	require.NoError(t, err)
	require.Contains(t, out, "(too large)")
	require.Contains(t, out, "result     original=84493500 split=84493500")
}

func TestGenSplitRunPipeline(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "sum.cbor")
	splitted := filepath.Join(dir, "split.cbor")

	_, _, err := execute(t, nil, "gen", "--terms", "300", "--owner", "Pipe", "-o", original)
	require.NoError(t, err)

	out, _, err := execute(t, nil, "run", original)
	require.NoError(t, err)
	require.Equal(t, "44850\n", out)

	out, _, err = execute(t, nil, "split", original, "-o", splitted)
	require.NoError(t, err)
	require.Contains(t, out, "extracted  Pipe.sum$split")

	data, err := os.ReadFile(splitted)
	require.NoError(t, err)
	routines, err := codec.UnmarshalAll(data)
	require.NoError(t, err)
	require.Len(t, routines, 2)
	require.Equal(t, "sum", routines[0].Name())
	require.Equal(t, "sum$split", routines[1].Name())

	out, _, err = execute(t, nil, "run", splitted)
	require.NoError(t, err)
	require.Equal(t, "44850\n", out)

	out, _, err = execute(t, nil, "dis", splitted, "--name", "sum")
	require.NoError(t, err)
	require.Contains(t, out, "public static Pipe.sum()I")
	require.Contains(t, out, "Pipe.sum$split()")
	require.NotContains(t, out, "synthetic")
}

func TestSplitBoundsFlags(t *testing.T) {
	path := writeFile(t, sumRoutine("Bounds", 100))
	out, _, err := execute(t, nil, "split", path, "--min", "20", "--max", "30")
	require.NoError(t, err)
	require.Contains(t, out, "trimmed    Bounds.sum()I")

	_, _, err = execute(t, nil, "split", path, "--name", "missing")
	require.EqualError(t, err, `routine "missing" not found`)
}

func TestRunArguments(t *testing.T) {
	path := writeFile(t, addRoutine())
	out, _, err := execute(t, nil, "run", path, "3", "40")
	require.NoError(t, err)
	require.Equal(t, "43\n", out)

	_, _, err = execute(t, nil, "run", path, "3")
	require.EqualError(t, err, "Calc.add(IJ)J takes 2 arguments, got 1")
}

func TestRunFromStdin(t *testing.T) {
	data, err := codec.Marshal(addRoutine())
	require.NoError(t, err)
	out, _, err := execute(t, data, "run", "--stdin", "1", "2")
	require.NoError(t, err)
	require.Equal(t, "3\n", out)
}

func TestRunTrace(t *testing.T) {
	path := writeFile(t, addRoutine())
	out, stderr, err := execute(t, nil, "run", path, "--trace", "3", "40")
	require.NoError(t, err)
	require.Equal(t, "43\n", out)
	require.Contains(t, stderr, "DBG")
	require.Contains(t, stderr, "op=I2L")
	require.Contains(t, stderr, "op=LADD")
	require.Contains(t, stderr, "call")
	require.Contains(t, stderr, "value=43")

	_, stderr, err = execute(t, nil, "run", path, "--trace=calls", "3", "40")
	require.NoError(t, err)
	require.Contains(t, stderr, "return")
	require.NotContains(t, stderr, "op=")

	_, stderr, err = execute(t, nil, "run", path, "3", "40")
	require.NoError(t, err)
	require.Empty(t, stderr)

	_, _, err = execute(t, nil, "run", path, "--trace=bogus", "3", "40")
	require.EqualError(t, err, `unknown trace mode "bogus"`)
}

func TestStdinFlagFalse(t *testing.T) {
	path := writeFile(t, addRoutine())
	out, _, err := execute(t, nil, "run", "--stdin=false", path, "5", "6")
	require.NoError(t, err)
	require.Equal(t, "11\n", out)

	out, _, err = execute(t, nil, "dis", "--stdin=false", path)
	require.NoError(t, err)
	require.Contains(t, out, "LADD")
}

func TestMultipleInputSources(t *testing.T) {
	path := writeFile(t, addRoutine())
	_, _, err := execute(t, nil, "dis", path, "--stdin")
	require.EqualError(t, err, "multiple input sources specified")

	_, _, err = execute(t, nil, "dis")
	require.EqualError(t, err, "no input specified")
}

func TestLogLevelFromEnvironment(t *testing.T) {
	t.Setenv("MSPLIT_LOG_LEVEL", "bogus")
	_, _, err := execute(t, nil, "demo", "--terms", "10")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid log level")
}

func TestDebugLogging(t *testing.T) {
	_, stderr, err := execute(t, nil, "--log-level", "debug", "demo", "--terms", "50")
	require.NoError(t, err)
	require.Contains(t, stderr, "split routine")
}

func TestParseArgs(t *testing.T) {
	r := bytecode.NewBuilder("P", bytecode.AccStatic, "f", "(ZIJFDLjava/lang/String;)V").
		Op(op.Return).
		MustRoutine()
	values, err := parseArgs(r, []string{"true", "0x10", "9000000000", "1.5", "2.25", "hi"})
	require.NoError(t, err)
	require.Equal(t, []any{true, int32(16), int64(9000000000), float32(1.5), 2.25, "hi"}, values)

	_, err = parseArgs(r, []string{"yes", "1", "1", "1", "1", "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "argument 0")

	obj := bytecode.NewBuilder("P", bytecode.AccStatic, "g", "(Ljava/lang/Object;)V").
		Op(op.Return).
		MustRoutine()
	_, err = parseArgs(obj, []string{"x"})
	require.EqualError(t, err, "argument 0: cannot pass java/lang/Object from the command line")
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, os.ErrNotExist)
	require.Equal(t, "file does not exist\n", buf.String())
}
