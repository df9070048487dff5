package record

import (
	"motium/internal/app/client"
	"motium/internal/domain/mileage"
	"motium/internal/domain/record"

	"github.com/spf13/cobra"
)

var (
	vehicleName      string
	vehicleType      string
	vehiclePower     string
	vehicleEnergy    string
	vehiclePlate     string
	vehicleIsDefault bool
)

var vehicleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Добавить транспорт",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return add(cmd, &record.Vehicle{
			Name:         vehicleName,
			Type:         record.VehicleType(vehicleType),
			Power:        mileage.Power(vehiclePower),
			Energy:       record.Energy(vehicleEnergy),
			LicensePlate: vehiclePlate,
			IsDefault:    vehicleIsDefault,
		})
	},
}

func init() {
	vehicleAddCmd.Flags().StringVar(&vehicleName, "name", "", "название")
	vehicleAddCmd.Flags().StringVar(&vehicleType, "type", string(record.VehicleCar), "car, motorcycle, moped")
	vehicleAddCmd.Flags().StringVar(&vehiclePower, "power", "", "фискальная мощность: 3CV, 4CV, 5CV, 6CV, 7CV+")
	vehicleAddCmd.Flags().StringVar(&vehicleEnergy, "energy", string(record.EnergyFuel), "fuel, electric, hybrid")
	vehicleAddCmd.Flags().StringVar(&vehiclePlate, "plate", "", "номер")
	vehicleAddCmd.Flags().BoolVar(&vehicleIsDefault, "default", false, "основной транспорт")
	_ = vehicleAddCmd.MarkFlagRequired("name")

	VehicleCmd.AddCommand(
		vehicleAddCmd,
		newDeleteCmd(record.KindVehicle),
		newListCmd(record.KindVehicle,
			[]string{"Название", "Тип", "Мощность", "Энергия", "Основной"},
			func(e client.Entry[record.Vehicle]) []string {
				return []string{
					e.Data.Name,
					string(e.Data.Type),
					string(e.Data.Power),
					string(e.Data.Energy),
					yesNo(e.Data.IsDefault),
				}
			}),
	)
}
