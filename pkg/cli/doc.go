/*
Package cli provides helpers shared by the throttle commands.

Output Formatting:

Command results can be printed as text, JSON or CSV. Values that implement
Table render as aligned columns in text mode and as rows in CSV mode:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Progress Reporting:

Long runs report admitted requests as they complete:

	progress := cli.NewProgress(os.Stderr, total)
	for range work {
		progress.Increment()
	}
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

Exit Codes:

ExitCode maps command errors to process exit statuses, so configuration
problems and interrupted runs can be told apart in scripts.
*/
package cli
