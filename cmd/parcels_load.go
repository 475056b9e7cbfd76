package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/parcels"
	"github.com/sells-group/filings-cli/internal/store"
)

var parcelsMapping map[string]string

var parcelsLoadCmd = &cobra.Command{
	Use:   "parcels-load <shapefile>",
	Short: "Load a county parcel shapefile into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		pg, ok := st.(*store.PostgresStore)
		if !ok {
			return eris.New("parcels-load requires the postgres store driver")
		}

		mapping := parcels.DefaultFieldMapping()
		applyMappingOverrides(&mapping, parcelsMapping)

		n, err := parcels.Load(cmd.Context(), pg.Pool(), args[0], mapping)
		if err != nil {
			return err
		}

		zap.L().Info("parcel load complete", zap.Int64("rows", n))
		return nil
	},
}

func applyMappingOverrides(mapping *parcels.FieldMapping, overrides map[string]string) {
	for column, attr := range overrides {
		switch column {
		case "account_number":
			mapping.AccountNumber = attr
		case "owner_name":
			mapping.OwnerName = attr
		case "legal_text":
			mapping.LegalText = attr
		case "subdivision":
			mapping.Subdivision = attr
		case "block":
			mapping.Block = attr
		case "lot":
			mapping.Lot = attr
		case "situs_number":
			mapping.SitusNumber = attr
		case "situs_street":
			mapping.SitusStreet = attr
		case "situs_city":
			mapping.SitusCity = attr
		case "situs_zip":
			mapping.SitusZip = attr
		}
	}
}

func init() {
	parcelsLoadCmd.Flags().StringToStringVar(&parcelsMapping, "map", nil,
		"override a column's shapefile attribute, as column=ATTR")
	rootCmd.AddCommand(parcelsLoadCmd)
}
