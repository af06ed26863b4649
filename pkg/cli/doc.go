/*
Package cli provides helpers shared by the custodian commands.

Output formatting renders retention results, tenant settings and id lists as
text tables or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, results); err != nil {
		return err
	}

Signal handling cancels long-running commands on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
