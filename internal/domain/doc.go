// Package domain models the granule extraction pipeline: the structure of a
// NetCDF granule as reported by the ncdump tool, and the flat point records
// the extractor emits for it.
//
// # Header Source
//
// Headers are read from the NcML form of the file header, produced by:
//
//	ncdump -h -x <granule>
//
// The document root is a "netcdf" element whose children declare dimensions
// (name, length), global attributes (name, value) and variables (name,
// space-separated shape, CDL type). A variable whose name equals a dimension
// name is the coordinate ("dimension definition") variable for that
// dimension. See [ParseHeader].
//
// # Data Section
//
// Values for one variable come from:
//
//	ncdump -v <name> <granule>
//
// which prints the header again followed by a data section:
//
//	data:
//
//	 precip =
//	  1, 2, 3,
//	  4, _, 6 ;
//	}
//
// Values are listed row-major with the last declared dimension varying
// fastest. "_" marks a fill (missing) value and is replaced by [MissingValue].
// See [ParseDataSection].
//
// # Point Encoding
//
// Every grid cell becomes one point, written as:
//
//	<lat>,<lon>,<level>,<time>,<value>   e.g. "10,-170,850,20240101T0000Z,2.5"
//
// For two dimensional variables the outer dimension supplies lat, the inner
// supplies lon and level is fixed (0 unless configured). Three dimensional
// variables are level x lat x lon and are flattened slice by slice.
//
// Longitudes are stored on the -180..180 convention. Sources using 0..360
// (TRMM) are converted with [NormalizeLongitude] on the innermost dimension
// of three dimensional variables.
//
// # Granule Time
//
// Time is not taken from a file dimension. It is derived once per granule
// from the file name by a [TimeConvention], e.g. "3B42_daily.2009.01.15.7.nc"
// becomes "20090115T0000Z".
package domain
