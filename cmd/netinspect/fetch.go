package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"netinspect/pkg/api"

	"github.com/spf13/cobra"
)

var (
	fetchMethod string
	fetchData   string
	fetchHeader []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Send one request through the recording client",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVarP(&fetchMethod, "method", "X", http.MethodGet, "请求方法")
	fetchCmd.Flags().StringVarP(&fetchData, "data", "d", "", "请求体")
	fetchCmd.Flags().StringArrayVarP(&fetchHeader, "header", "H", nil, "请求头，格式 'Name: value'")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, _, l, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, l)
	if err := svc.Activate(ctx); err != nil {
		return err
	}

	var body io.Reader
	if fetchData != "" {
		body = strings.NewReader(fetchData)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(fetchMethod), args[0], body)
	if err != nil {
		return err
	}
	for _, h := range fetchHeader {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("invalid header %q", h)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := svc.Client().Do(req)
	if err != nil {
		// 失败的请求同样会被记录
		fmt.Println(errorStyle.Render(err.Error()))
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	if ferr := svc.Flush(ctx); ferr != nil {
		return ferr
	}
	txs, qerr := svc.Transactions(ctx, api.Query{Limit: 1})
	if qerr == nil && len(txs) > 0 {
		fmt.Println(formatLine(txs[0]))
	}
	return err
}
