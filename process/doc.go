// Package process creates and supervises child processes for the agent.
//
// A Command is a reusable, mutable description of a program: path and
// arguments, environment, working directory, uid/gid and optional event
// handlers. Execute spawns one child per call.
//
// Without handlers the child runs fully detached with its stdio on
// /dev/null and Execute returns immediately. With handlers the child's
// stdio is connected to the parent through three pipes, and Execute blocks
// while the handlers run:
//
//	cmd := process.New()
//	if err := cmd.SetCommand("/bin/cat"); err != nil {
//		return err
//	}
//	cmd.SetOnExec(func(p *process.Process) {
//		out := p.OutputStream()
//		out.Printf("ping\n")
//		out.Flush()
//		line, _ := p.InputStream().ReadLine()
//		fmt.Println(line)
//	})
//	if err := cmd.Execute(); err != nil {
//		return err
//	}
//
// Handlers block the caller for their whole duration, so long-running
// daemons should be started without them. Run wraps the handler protocol
// to capture a program's output and exit code.
package process
