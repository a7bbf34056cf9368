package main

import (
	"fmt"
	"strings"
	"time"

	"netinspect/pkg/api"
	"netinspect/pkg/model"

	"github.com/spf13/cobra"
)

var (
	listMethod string
	listStatus int
	listLimit  int
)

var transactionsCmd = &cobra.Command{
	Use:     "transactions",
	Aliases: []string{"tx"},
	Short:   "Inspect recorded transactions",
}

var transactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded transactions, newest first",
	RunE:  runTransactionsList,
}

var transactionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runTransactionsShow,
}

var transactionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded transaction",
	RunE:  runTransactionsClear,
}

func init() {
	rootCmd.AddCommand(transactionsCmd)
	transactionsCmd.AddCommand(transactionsListCmd, transactionsShowCmd, transactionsClearCmd)

	transactionsListCmd.Flags().StringVarP(&listMethod, "method", "m", "", "按方法过滤")
	transactionsListCmd.Flags().IntVarP(&listStatus, "status", "s", 0, "按状态码过滤")
	transactionsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "最多显示条数，0 为不限")
}

func runTransactionsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, _, l, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, l)

	q := api.Query{StatusCode: listStatus, Limit: listLimit}
	if listMethod != "" {
		q.Method = model.ParseHTTPMethod(listMethod)
		if !q.Method.Valid() {
			return fmt.Errorf("invalid method %q", listMethod)
		}
	}
	txs, err := svc.Transactions(ctx, q)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Println(mutedStyle.Render("没有记录"))
		return nil
	}
	for _, tx := range txs {
		fmt.Println(formatLine(tx))
	}
	return nil
}

// formatLine 单行摘要：时间 方法 状态 耗时 URL
func formatLine(tx model.NetworkTransaction) string {
	status := string(tx.Status)
	if code := tx.StatusCode(); code != 0 {
		status = fmt.Sprintf("%d", code)
	}
	dur := "-"
	if d, ok := tx.DurationSeconds(); ok {
		dur = fmt.Sprintf("%.0fms", d*1000)
	}
	return strings.Join([]string{
		mutedStyle.Render(tx.Start().Format(time.TimeOnly)),
		valueStyle.Render(fmt.Sprintf("%-7s", tx.Request.Method)),
		statusStyle(tx.Status).Render(fmt.Sprintf("%-9s", status)),
		fmt.Sprintf("%8s", dur),
		tx.Request.URL,
	}, " ")
}

func runTransactionsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, _, l, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, l)

	tx, err := svc.Transaction(ctx, args[0])
	if err != nil {
		return err
	}
	lines := []string{
		titleStyle.Render(string(tx.Request.Method) + " " + tx.Request.URL),
		row("ID", tx.ID),
		row("Status", statusStyle(tx.Status).Render(string(tx.Status))),
		row("Started", tx.Start().Format(time.RFC3339Nano)),
	}
	if d, ok := tx.DurationSeconds(); ok {
		lines = append(lines, row("Duration", fmt.Sprintf("%.3fs", d)))
	}
	if tx.Error != "" {
		lines = append(lines, row("Error", errorStyle.Render(tx.Error)))
	}
	if tx.Request.BodyText != "" {
		lines = append(lines, "", titleStyle.Render("Request body"), tx.Request.BodyText)
	}
	if resp := tx.Response; resp != nil {
		lines = append(lines, "",
			titleStyle.Render("Response"),
			row("Code", fmt.Sprintf("%d %s", resp.StatusCode, resp.StatusMessage)),
			row("Content-Type", resp.ContentType()),
		)
		if resp.BodyText != "" {
			lines = append(lines, resp.BodyText)
		}
	}
	fmt.Println(cardStyle.Render(strings.Join(lines, "\n")))
	return nil
}

func runTransactionsClear(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, _, l, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, l)

	if err := svc.ClearTransactions(ctx); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("已清空"))
	return nil
}
