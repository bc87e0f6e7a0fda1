package monitor

import "github.com/beevik/cmd"

type handler func(*Monitor, cmd.Selection) error

// command is the payload stored with every tree entry.
type command struct {
	desc cmd.CommandDescriptor
	run  handler
}

var (
	cmds     *cmd.Tree
	commands []*command
)

func add(t *cmd.Tree, desc cmd.CommandDescriptor, run handler) {
	c := &command{desc: desc, run: run}
	desc.Data = c
	t.AddCommand(desc)
	commands = append(commands, c)
}

func init() {
	root := cmd.NewTree(cmd.TreeDescriptor{Name: "mipsim"})
	add(root, cmd.CommandDescriptor{
		Name:        "help",
		Brief:       "Display help for a command",
		Description: "Display the list of commands, or the help text of one command.",
		Usage:       "help [<command>]",
	}, (*Monitor).cmdHelp)
	add(root, cmd.CommandDescriptor{
		Name:  "step",
		Brief: "Step the simulator",
		Description: "Advance the simulator by one step, which is one instruction" +
			" on the functional core and one cycle on the pipelined core. The" +
			" number of steps may be specified as an option.",
		Usage: "step [<count>]",
	}, (*Monitor).cmdStep)
	add(root, cmd.CommandDescriptor{
		Name:  "run",
		Brief: "Run the program",
		Description: "Run the program until it leaves its text section, a" +
			" halting exception stops it, or the step budget runs out.",
		Usage: "run",
	}, (*Monitor).cmdRun)
	add(root, cmd.CommandDescriptor{
		Name:        "registers",
		Brief:       "Display the registers",
		Description: "Display the PC and the contents of the 32 general purpose registers.",
		Usage:       "registers",
	}, (*Monitor).cmdRegisters)
	add(root, cmd.CommandDescriptor{
		Name:  "pipeline",
		Brief: "Display the pipeline registers",
		Description: "Display the contents of the IF/ID, ID/EX, EX/MEM and" +
			" MEM/WB registers and the trace of the last cycle. Only" +
			" available on the pipelined core.",
		Usage: "pipeline",
	}, (*Monitor).cmdPipeline)
	add(root, cmd.CommandDescriptor{
		Name:  "disassemble",
		Brief: "Disassemble code",
		Description: "Disassemble instructions starting at the requested" +
			" address. The number of lines may be specified as an option. If" +
			" no address is given, the disassembly continues from where the" +
			" last one left off.",
		Usage: "disassemble [<address>] [<lines>]",
	}, (*Monitor).cmdDisassemble)
	add(root, cmd.CommandDescriptor{
		Name:        "symbols",
		Brief:       "List the program's symbols",
		Description: "List every label of the loaded program with its address.",
		Usage:       "symbols",
	}, (*Monitor).cmdSymbols)
	add(root, cmd.CommandDescriptor{
		Name:        "stats",
		Brief:       "Display run statistics",
		Description: "Display the step, instruction and cycle counts of the run so far.",
		Usage:       "stats",
	}, (*Monitor).cmdStats)
	add(root, cmd.CommandDescriptor{
		Name:        "reset",
		Brief:       "Reset the simulator",
		Description: "Reload the program and restore the reset register state.",
		Usage:       "reset",
	}, (*Monitor).cmdReset)

	// Memory commands
	me := root.AddSubtree(cmd.TreeDescriptor{Name: "memory", Brief: "Memory commands"})
	add(me, cmd.CommandDescriptor{
		Name:  "dump",
		Brief: "Dump memory at address",
		Description: "Dump the contents of memory starting from the" +
			" specified address. The number of bytes to dump may be" +
			" specified as an option. If no address is specified, the" +
			" dump continues from where the last one left off.",
		Usage: "memory dump [<address>] [<bytes>]",
	}, (*Monitor).cmdMemoryDump)
	add(me, cmd.CommandDescriptor{
		Name:  "set",
		Brief: "Set memory at address",
		Description: "Store a series of space-separated 32-bit words starting" +
			" at the specified word-aligned address.",
		Usage: "memory set <address> <word> [<word> ...]",
	}, (*Monitor).cmdMemorySet)

	add(root, cmd.CommandDescriptor{
		Name:        "quit",
		Brief:       "Quit the monitor",
		Description: "Quit the monitor.",
		Usage:       "quit",
	}, (*Monitor).cmdQuit)

	root.AddShortcut("?", "help")
	root.AddShortcut("s", "step")
	root.AddShortcut("r", "registers")
	root.AddShortcut("p", "pipeline")
	root.AddShortcut("d", "disassemble")
	root.AddShortcut("m", "memory dump")
	root.AddShortcut("ms", "memory set")
	root.AddShortcut("q", "quit")

	cmds = root
}
