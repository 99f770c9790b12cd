package common

import "time"

// Model names
const (
	LapTimeModel  = "lap_time"
	CarClassModel = "car_class"
)

// Model kinds
const (
	KindRegression     = "regression"
	KindClassification = "classification"
)

// Model backends
const (
	BackendProcess = "process"
	BackendRemote  = "remote"
)

// Environment variable keys
const (
	EnvConfigFile    = "CONFIG_FILE"
	EnvDotEnvFile    = "DOTENV_FILE"
	EnvDataPath      = "DATA_PATH"
	EnvArtifactsDir  = "ARTIFACTS_DIR"
	EnvListenPort    = "LISTEN_PORT"
	EnvLogLevel      = "LOG_LEVEL"
	EnvLogFormat     = "LOG_FORMAT"
	EnvModelTimeout  = "MODEL_TIMEOUT"
	EnvModelBackend  = "MODEL_BACKEND"
	EnvInferenceURL  = "INFERENCE_URL"
	EnvPythonPath    = "PYTHON_PATH"
	EnvHistoryEnable = "HISTORY_ENABLED"
	EnvModels        = "MODELS"
)

// Configuration defaults
const (
	DefaultArtifactsDir = "artifacts"
	DefaultListenPort   = 8501
	DefaultLogLevel     = "info"
	DefaultModelTimeout = 10 * time.Second
	DefaultModelBackend = BackendProcess
	DefaultDBFile       = "race-predictor.db"
	DefaultDotEnvFile   = ".env"
)

// Validation constants
const (
	MinModelTimeout = 100 * time.Millisecond
	MaxModelTimeout = 5 * time.Minute
	MinListenPort   = 1024
	MaxListenPort   = 65535
	MinSeasonStart  = 2012
	MaxSeasonStart  = 2030
	MaxClassLap     = 400
	MaxClassStint   = 10
	MaxRound        = 12
	MinClassSpeed   = 100.0
	MinClassLapTime = 60.0
)

// Feature prefixes and encoded column names
const (
	CircuitPrefix       = "circuit"
	ManufacturerPrefix  = "manufacturer"
	FieldCircuit        = "circuit"
	FieldManufacturer   = "manufacturer"
	FieldClass          = "class"
	FieldTeamStint      = "team_stint_no"
	ColumnTeamNo        = "team_no"
	ColumnManufacturerE = "manufacturer_encoded"
	ColumnTeamE         = "team_encoded"
)

// ClassOrder is the reference order of car classes; position is the ordinal rank.
var ClassOrder = []string{
	"LMP1-H", "LMP1-L", "LMP1", "HYPERCAR", "LMP2", "INNOVATIVE CAR", "LMGTE Pro", "LMGTE Am", "CDNT",
}

// Circuits is the circuit universe the models were trained on.
var Circuits = []string{
	"autodromo_hermanos_rodriguez", "autodromo_nazionale_di_monza", "bahrain_international_circuit",
	"circuit_of_the_americas", "fuji_speedway", "interlagos", "le_mans", "nurburgring", "sebring",
	"shanghai_international_circuit", "silverstone", "spa_francorchamps",
}

// Manufacturers is the manufacturer universe the models were trained on.
var Manufacturers = []string{
	"aston_martin", "audi", "aurus", "bmw", "br01", "br_engineering", "chevrolet", "clm", "dallara",
	"dome", "enso", "ferrari", "ford", "gibson", "ginetta", "glickenhaus", "hpd", "hpd_(honda)",
	"ligier", "lola", "morgan", "nissan", "norma", "oak", "oreca", "porsche", "rebellion",
	"riley", "srt", "strakka", "toyota", "zytek",
}

// LapTimeScalars are the numeric fields passed through to the lap-time model.
var LapTimeScalars = []string{
	"driver_number", "lap_number", "kph", "top_speed", "pit_time",
	"driver_stint_no", "team_stint_no", "position", "class_position", "season_start",
}

// CarClassScalars are the numeric fields passed through to the car-class model.
var CarClassScalars = []string{
	"car_number", "driver_number", "lap_number", "kph", "top_speed", "round",
	"lap_time_s", "driver_stint_no", "team_stint_no", "position", "season_start",
}

// LapTimeSchema returns the column order of the lap-time regression model.
func LapTimeSchema() []string {
	return BuildSchema(LapTimeScalars, Circuits, Manufacturers, FieldManufacturer, ColumnTeamNo, FieldClass)
}

// CarClassSchema returns the column order of the car-class classifier.
func CarClassSchema() []string {
	return BuildSchema(CarClassScalars, Circuits, Manufacturers, ColumnManufacturerE, ColumnTeamE)
}

// BuildSchema lays out scalars, then circuit_* and manufacturer_* one-hot
// columns in universe order, then the tail columns.
func BuildSchema(scalars, circuits, manufacturers []string, tail ...string) []string {
	schema := make([]string, 0, len(scalars)+len(circuits)+len(manufacturers)+len(tail))
	schema = append(schema, scalars...)
	for _, c := range circuits {
		schema = append(schema, CircuitPrefix+"_"+c)
	}
	for _, m := range manufacturers {
		schema = append(schema, ManufacturerPrefix+"_"+m)
	}
	return append(schema, tail...)
}
