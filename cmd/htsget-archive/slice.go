package main

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htsdao"
	"github.com/umccr/htsget-archive/internal/htsrequest"
	"github.com/umccr/htsget-archive/internal/htsticket"
	"github.com/umccr/htsget-archive/internal/slice"
)

var (
	sliceFormat        string
	sliceIndex         string
	sliceReference     string
	sliceStart         int64
	sliceEnd           int64
	sliceHeader        bool
	sliceMaxBlockBytes int64
)

var sliceCmd = &cobra.Command{
	Use:   "slice <file>",
	Short: "print the ticket for a region of a local, unencrypted file",
	Long: `
Plans a region query against a plain BAM, CRAM or VCF file and its index and
prints the htsget ticket. Byte ranges refer to the file itself.
`,
	Args: cobra.ExactArgs(1),
	RunE: runSlice,
}

func runSlice(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	format := strings.ToUpper(sliceFormat)
	if format == "" {
		if format, err = slice.DetectFormat(path); err != nil {
			return err
		}
	}

	params := url.Values{}
	params.Set(htsconstants.ParamFormat, format)
	if sliceHeader {
		params.Set(htsconstants.ParamClass, htsconstants.ClassHeader)
	}
	if sliceReference != "" {
		params.Set(htsconstants.ParamReferenceName, sliceReference)
	}
	if sliceStart >= 0 {
		params.Set(htsconstants.ParamStart, strconv.FormatInt(sliceStart, 10))
	}
	if sliceEnd >= 0 {
		params.Set(htsconstants.ParamEnd, strconv.FormatInt(sliceEnd, 10))
	}
	endpoint := htsrequest.ReadsEndpoint
	if format == htsconstants.FormatVCF || format == htsconstants.FormatBCF {
		endpoint = htsrequest.VariantsEndpoint
	}
	req, err := htsrequest.Parse(filepath.Base(path), endpoint, params)
	if err != nil {
		return err
	}

	dao := htsdao.NewLocalDao(path, sliceIndex)
	s, err := htsdao.Plan(context.Background(), dao, slice.NewFactory(sliceMaxBlockBytes), req.Query)
	if err != nil {
		return err
	}
	ticket := htsticket.NewTicket().SetHTSgetTicket(
		htsticket.NewHTSgetTicket().
			SetFormat(req.GetFormat()).
			SetURLS(htsticket.FromSlice(s, "file://"+path)))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ticket)
}
