package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/filterbind/internal/config"
	"github.com/vango-dev/filterbind/internal/errors"
	"github.com/vango-dev/filterbind/pkg/navigation"
	"github.com/vango-dev/filterbind/pkg/server"
)

type applyRequest struct {
	URL     string
	Name    string
	Value   string
	Type    string
	Replace bool
	Remove  *string

	// Config, when set, supplies the filter declaration for Name. Its type,
	// mode and remove value apply unless overridden by the other fields.
	Config *config.Config
}

type applyResult struct {
	Href    string
	Entries int
}

func applyCmd() *cobra.Command {
	var (
		req        applyRequest
		remove     string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Print the URL produced by writing one filter value",
		Long: `Print the URL produced by writing one filter value.

The filter starts from --url, receives --value, and commits without
delay. The resulting href is printed to stdout.

List values are comma separated on the command line and written to the
URL joined with "_".

With --config the filter is taken from a filterd.json declaration;
--type is ignored and --replace and --remove still override it.

Examples:
  filterd apply --url '/products?page=4' --name q --value 'red shoes'
  filterd apply --url '/products?sort=price' --name sort --value relevance --remove relevance
  filterd apply --url /products --name tags --type list --value sale,new --replace
  filterd apply --config ./filterd.json --url /products --name sort --value relevance`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("remove") {
				req.Remove = &remove
			}
			if configPath != "" {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				req.Config = cfg
			}
			res, err := runApply(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Href)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.URL, "url", "u", "/", "Starting URL (path and query)")
	cmd.Flags().StringVarP(&req.Name, "name", "n", "", "Query parameter bound by the filter")
	cmd.Flags().StringVarP(&req.Value, "value", "v", "", "Value to write")
	cmd.Flags().StringVarP(&req.Type, "type", "t", config.TypeString, "Filter type: string, int, float, bool, list")
	cmd.Flags().BoolVar(&req.Replace, "replace", false, "Replace the history entry instead of pushing")
	cmd.Flags().StringVar(&remove, "remove", "", "Value that removes the parameter instead of writing it")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Take the filter declaration from this config file or directory")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runApply(req applyRequest) (applyResult, error) {
	if req.Name == "" {
		return applyResult{}, errors.New("F020").WithDetail("--name is required")
	}

	history, err := navigation.NewHistory(req.URL)
	if err != nil {
		return applyResult{}, err
	}

	fc := config.FilterConfig{
		Name: req.Name,
		Type: req.Type,
		Mode: config.ModePush,
	}
	if req.Config != nil {
		decl, ok := req.Config.Filter(req.Name)
		if !ok {
			return applyResult{}, errors.New("F002").WithDetailf("%q is not declared in %s", req.Name, req.Config.Path())
		}
		fc = decl
	}
	fc.Delay = "0s"
	if req.Replace {
		fc.Mode = config.ModeReplace
	}
	if req.Remove != nil {
		fc.Remove, err = valueJSON(fc.Type, *req.Remove)
		if err != nil {
			return applyResult{}, err
		}
	}

	value, err := valueJSON(fc.Type, req.Value)
	if err != nil {
		return applyResult{}, err
	}

	field, err := server.NewField(fc, history)
	if err != nil {
		return applyResult{}, err
	}
	defer field.Close()

	if err := field.SetJSON(value); err != nil {
		return applyResult{}, err
	}
	field.Flush()

	return applyResult{
		Href:    history.Current().Href(),
		Entries: history.Len(),
	}, nil
}

// valueJSON converts a command-line value into the JSON a filter of typ
// accepts.
func valueJSON(typ, raw string) (json.RawMessage, error) {
	var v any
	var err error

	switch typ {
	case config.TypeString, "":
		v = raw
	case config.TypeInt:
		v, err = strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case config.TypeFloat:
		v, err = strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case config.TypeBool:
		v, err = strconv.ParseBool(strings.TrimSpace(raw))
	case config.TypeList:
		items := []string{}
		if raw != "" {
			items = strings.Split(raw, ",")
		}
		v = items
	default:
		return nil, errors.New("F012").WithDetailf("--type %q", typ)
	}
	if err != nil {
		return nil, errors.New("F020").WithDetailf("%q is not a valid %s: %v", raw, typ, err)
	}
	return json.Marshal(v)
}
