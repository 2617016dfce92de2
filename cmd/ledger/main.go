package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/cache"
	"finledger/internal/cli"
	"finledger/internal/config"
	"finledger/internal/core"
	"finledger/internal/ledger"
	"finledger/internal/loan"
	"finledger/internal/log"
	"finledger/internal/seed"
	"finledger/internal/services"
	"finledger/internal/storage"
	"finledger/internal/worker"

	"github.com/google/uuid"
)

const usage = `usage: ledger <command> [flags]

commands:
  import -file PATH                 load records from a YAML file
  summary [-json]                   print balances, debts, loans and net worth
  process-due [-today YYYY-MM-DD]   post due recurring transactions
  repay -loan ID -amount N -account ID [-date D] [-note TEXT] [-income]
  pay-installment -purchase ID
  deposit -box ID -amount N [-account ID] [-date D]
  withdraw -box ID -amount N [-account ID] [-date D]
  delete-account -id ID
  delete-loan -id ID [-force]
  watch                             log transaction.posted events until interrupted
`

var errUsage = errors.New("invalid usage")

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentCLI)

	ctx, _ := cli.GracefulShutdown(logger, 10*time.Second, nil)
	ctx = log.NewContext(ctx, logger)

	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer repo.Close()

	janitor := cache.NewJanitor()
	calc := cli.NewNetWorthCalculator(cfg, janitor)
	svc := services.NewLedgerService(repo, calc)

	switch cmd {
	case "import":
		return runImport(ctx, repo, args, out)
	case "summary":
		return runSummary(ctx, svc, args, out)
	case "process-due":
		return runProcessDue(ctx, cfg, repo, args, out)
	case "repay":
		return runRepay(ctx, svc, args, out)
	case "pay-installment":
		return runPayInstallment(ctx, svc, args, out)
	case "deposit", "withdraw":
		return runMoneyBox(ctx, svc, cmd, args, out)
	case "delete-account":
		return runDeleteAccount(ctx, svc, args, out)
	case "delete-loan":
		return runDeleteLoan(ctx, svc, args, out)
	case "watch":
		return runWatch(ctx, cfg, worker.NewPostingWatcher(repo, calc), janitor)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: -%s is required", errUsage, name)
	}
	return nil
}

// dateOrToday parses s, defaulting to the current local date.
func dateOrToday(s string) (core.Date, error) {
	if s == "" {
		return core.DateOf(time.Now()), nil
	}
	return core.ParseDate(s)
}

func runImport(ctx context.Context, repo *storage.SQLiteRepository, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	path := fs.String("file", "", "YAML file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required("file", *path); err != nil {
		return err
	}

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := seed.Decode(f)
	if err != nil {
		return err
	}
	if err := doc.Prepare(); err != nil {
		return err
	}
	if err := doc.Apply(ctx, repo); err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d accounts, %d transactions, %d recurring templates\n",
		len(doc.Accounts), len(doc.Transactions), len(doc.Recurring))
	return nil
}

func runSummary(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	sum, err := svc.Summary(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	return printSummary(out, sum)
}

func printSummary(out io.Writer, sum services.Summary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "ACCOUNT\tBALANCE")
	for _, a := range sum.Accounts {
		fmt.Fprintf(w, "%s\t%s\n", a.Account.Name, a.Balance.StringFixed(2))
	}
	if len(sum.MoneyBoxes) > 0 {
		fmt.Fprintln(w, "\nMONEY BOX\tBALANCE\tPROGRESS")
		for _, b := range sum.MoneyBoxes {
			fmt.Fprintf(w, "%s\t%s\t%s%%\n", b.Box.Name, b.Balance.StringFixed(2), b.Progress.Shift(2).StringFixed(0))
		}
	}
	if len(sum.Cards) > 0 {
		fmt.Fprintln(w, "\nCARD\tDEBT\tAVAILABLE\tUSED")
		for _, c := range sum.Cards {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s%%\n", c.Card.Name, c.Debt.StringFixed(2), c.AvailableLimit.StringFixed(2),
				c.Utilization.Shift(2).StringFixed(0))
		}
	}
	if len(sum.Purchases) > 0 {
		fmt.Fprintln(w, "\nPURCHASE\tINSTALLMENT\tREMAINING\tOUTSTANDING\tNEXT DUE")
		for _, p := range sum.Purchases {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.Purchase.Description, p.Installment.StringFixed(2), p.Remaining,
				p.Outstanding.StringFixed(2), orDash(p.NextDue.String()))
		}
	}
	if len(sum.Loans) > 0 {
		fmt.Fprintln(w, "\nLOAN\tPAID\tOUTSTANDING\tSTATUS")
		for _, l := range sum.Loans {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.Loan.PersonName, l.Paid.StringFixed(2), l.Outstanding.StringFixed(2), l.Status)
		}
	}
	if len(sum.Recurring) > 0 {
		fmt.Fprintln(w, "\nRECURRING\tAMOUNT\tSTATE\tUPCOMING")
		for _, r := range sum.Recurring {
			dates := make([]string, len(r.Upcoming))
			for i, d := range r.Upcoming {
				dates[i] = d.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Template.Description, r.Template.Amount.StringFixed(2), r.State,
				orDash(strings.Join(dates, " ")))
		}
	}

	nw := sum.NetWorth
	fmt.Fprintf(w, "\nNET WORTH\t%s\n", nw.Total.StringFixed(2))
	fmt.Fprintf(w, "  accounts\t%s\n", nw.Accounts.StringFixed(2))
	fmt.Fprintf(w, "  money boxes\t%s\n", nw.MoneyBoxes.StringFixed(2))
	fmt.Fprintf(w, "  receivables\t%s\n", nw.Receivables.StringFixed(2))
	fmt.Fprintf(w, "  card debt\t-%s\n", nw.CardDebt.StringFixed(2))
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runProcessDue(ctx context.Context, cfg *config.Config, repo *storage.SQLiteRepository, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("process-due", flag.ContinueOnError)
	todayFlag := fs.String("today", "", "process as of this date (YYYY-MM-DD)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	today, err := dateOrToday(*todayFlag)
	if err != nil {
		return err
	}

	var publisher services.EventPublisher
	if client := cli.InitAMQP(log.FromContext(ctx), cfg); client != nil {
		defer client.Close()
		publisher = client
	}

	report, err := services.NewRecurringProcessor(repo, publisher).ProcessDue(ctx, today)
	if err != nil {
		return err
	}
	for _, tx := range report.Posted {
		fmt.Fprintf(out, "posted %s %s %s %s\n", tx.Date, tx.Type, tx.Amount.StringFixed(2), tx.Description)
	}
	for _, msg := range report.Errors {
		fmt.Fprintf(out, "error: %s\n", msg)
	}
	fmt.Fprintf(out, "%d posted, %d templates advanced, %d errors\n",
		len(report.Posted), report.TemplatesUpdated, len(report.Errors))
	return nil
}

func runRepay(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("repay", flag.ContinueOnError)
	loanID := fs.String("loan", "", "loan id")
	id := fs.String("id", "", "repayment id (generated when empty)")
	amount := fs.String("amount", "", "amount paid")
	account := fs.String("account", "", "credited account id")
	date := fs.String("date", "", "repayment date (default today)")
	note := fs.String("note", "", "note")
	income := fs.Bool("income", false, "post the repayment as income on the credited account")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	for _, f := range []struct{ name, value string }{{"loan", *loanID}, {"amount", *amount}, {"account", *account}} {
		if err := required(f.name, f.value); err != nil {
			return err
		}
	}

	amt, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	when, err := dateOrToday(*date)
	if err != nil {
		return err
	}
	if *id == "" {
		*id = uuid.NewString()
	}

	rep, err := svc.RecordLoanRepayment(ctx, *loanID, loan.RepaymentInput{
		ID:                *id,
		AmountPaid:        amt,
		RepaymentDate:     when,
		CreditedAccountID: *account,
		Note:              *note,
		PostIncome:        *income,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "recorded repayment %s of %s on loan %s\n", rep.ID, rep.AmountPaid.StringFixed(2), rep.LoanID)
	return nil
}

func runPayInstallment(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("pay-installment", flag.ContinueOnError)
	purchaseID := fs.String("purchase", "", "purchase id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required("purchase", *purchaseID); err != nil {
		return err
	}

	p, err := svc.MarkInstallmentPaid(ctx, *purchaseID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d of %d installments paid\n", p.Description, p.InstallmentsPaid, p.NumberOfInstallments)
	return nil
}

func runMoneyBox(ctx context.Context, svc *services.LedgerService, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	boxID := fs.String("box", "", "money box id")
	id := fs.String("id", "", "movement id (generated when empty)")
	amount := fs.String("amount", "", "amount")
	account := fs.String("account", "", "linked account id")
	date := fs.String("date", "", "date (default today)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required("box", *boxID); err != nil {
		return err
	}
	if err := required("amount", *amount); err != nil {
		return err
	}

	amt, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	when, err := dateOrToday(*date)
	if err != nil {
		return err
	}
	if *id == "" {
		*id = uuid.NewString()
	}
	m := ledger.Movement{ID: *id, Amount: amt, Date: when, AccountID: *account}

	var mbt core.MoneyBoxTransaction
	if cmd == "deposit" {
		mbt, err = svc.DepositToMoneyBox(ctx, *boxID, m)
	} else {
		mbt, err = svc.WithdrawFromMoneyBox(ctx, *boxID, m)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s on %s\n", strings.ToLower(string(mbt.Type)), mbt.Amount.StringFixed(2), mbt.Date)
	return nil
}

func runDeleteAccount(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	id := fs.String("id", "", "account id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	if err := svc.DeleteAccount(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted account %s\n", *id)
	return nil
}

func runDeleteLoan(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete-loan", flag.ContinueOnError)
	id := fs.String("id", "", "loan id")
	force := fs.Bool("force", false, "delete even if partially repaid")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	if err := svc.DeleteLoan(ctx, *id, *force); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted loan %s\n", *id)
	return nil
}

// runWatch consumes posting events until ctx is cancelled, sweeping the net
// worth cache in the background.
func runWatch(ctx context.Context, cfg *config.Config, watcher *worker.PostingWatcher, janitor *cache.Janitor) error {
	if !cfg.PublishingEnabled() {
		return errors.New("watch requires AMQP_URL")
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.NetWorthCacheTTL > 0 {
		go janitor.Run(ctx, cfg.NetWorthCacheTTL)
		defer func() {
			cancel()
			<-janitor.Done()
		}()
	}

	err = client.ConsumeTransactionPosted(ctx, watcher.HandlePostedMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
